package rebalancing

import (
	"math"
	"sort"

	"github.com/aristath/geld/internal/domain"
)

// ProcessWithCascade loads the client's snapshot and runs a pass with
// surplus cascading.
func (e *Engine) ProcessWithCascade(clientID int64, movements []domain.Movement) (*Result, error) {
	snap, err := e.loader.Load(clientID)
	if err != nil {
		return nil, err
	}
	return e.ComputeWithCascade(snap, movements)
}

// ComputeWithCascade reroutes movement from goals above their present value
// ideal to goals below it, nearest deadline first, until nothing productive
// remains or the iteration cap is reached. The returned result is a final
// pass over the adjusted movements, annotated with every transfer made.
//
// The iteration cap is max(goals-1, 1). Donors give in order of largest
// surplus, ties by goal id. Receivers take in order of shortest horizon,
// ties by goal id.
func (e *Engine) ComputeWithCascade(snap *Snapshot, movements []domain.Movement) (*Result, error) {
	mv, err := movementMap(snap, movements)
	if err != nil {
		return nil, err
	}

	maxIterations := len(snap.Goals) - 1
	if maxIterations < 1 {
		maxIterations = 1
	}

	transfers := []Transfer{}
	iterations := 0

	for iteration := 1; iteration <= maxIterations; iteration++ {
		res, err := e.compute(snap, mv)
		if err != nil {
			return nil, err
		}
		iterations = iteration

		donors, receivers := e.partition(res)
		if len(donors) == 0 || len(receivers) == 0 {
			break
		}

		deficits := make(map[int64]float64, len(receivers))
		for _, r := range receivers {
			deficits[r.GoalID] = -r.Surplus()
		}

		moved := false
		for _, d := range donors {
			surplus := d.Surplus()
			for _, r := range receivers {
				if surplus <= 0 {
					break
				}
				deficit := deficits[r.GoalID]
				if deficit <= 0 {
					continue
				}

				amount := math.Min(surplus, deficit)
				mv[d.GoalID] -= amount
				mv[r.GoalID] += amount
				surplus -= amount
				deficits[r.GoalID] = deficit - amount

				transfers = append(transfers, Transfer{
					From:      d.GoalID,
					To:        r.GoalID,
					Amount:    amount,
					Iteration: iteration,
				})
				moved = true
			}
		}

		if !moved {
			break
		}
	}

	final, err := e.compute(snap, mv)
	if err != nil {
		return nil, err
	}
	final.Transfers = transfers
	final.CascadeApplied = len(transfers) > 0
	final.Iterations = iterations
	return final, nil
}

// partition splits goals into donors, whose new total exceeds the present
// value ideal by more than the tolerance, and receivers, short of it by
// more than the tolerance.
func (e *Engine) partition(res *Result) (donors, receivers []GoalResult) {
	tol := e.cfg.SurplusTolerance
	for _, g := range res.Goals {
		switch s := g.Surplus(); {
		case s > tol:
			donors = append(donors, g)
		case -s > tol:
			receivers = append(receivers, g)
		}
	}

	sort.SliceStable(donors, func(i, j int) bool {
		if donors[i].Surplus() != donors[j].Surplus() {
			return donors[i].Surplus() > donors[j].Surplus()
		}
		return donors[i].GoalID < donors[j].GoalID
	})
	sort.SliceStable(receivers, func(i, j int) bool {
		if receivers[i].HorizonMonths != receivers[j].HorizonMonths {
			return receivers[i].HorizonMonths < receivers[j].HorizonMonths
		}
		return receivers[i].GoalID < receivers[j].GoalID
	})
	return donors, receivers
}
