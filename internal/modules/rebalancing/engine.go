// Package rebalancing computes how a client's cash movements are spread over
// risk classes, how far each goal sits from its target allocation, and the
// ownership slices that result once the recommended trades are executed.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/matrix"
)

// Config holds the engine tunables
type Config struct {
	// GapTolerance is the class gap below which no cash needs to move.
	GapTolerance float64
	// SurplusTolerance is the slack around a goal's present value ideal
	// before the cascade treats it as a donor or a receiver.
	SurplusTolerance float64
}

// DefaultConfig returns the standard tolerances, in currency units
func DefaultConfig() Config {
	return Config{GapTolerance: 100, SurplusTolerance: 100}
}

// Engine runs rebalance passes
type Engine struct {
	resolver *matrix.Resolver
	loader   *SnapshotLoader
	cfg      Config
}

// NewEngine creates a new rebalance engine
func NewEngine(resolver *matrix.Resolver, loader *SnapshotLoader, cfg Config) *Engine {
	return &Engine{resolver: resolver, loader: loader, cfg: cfg}
}

// Process loads the client's snapshot and runs one pass
func (e *Engine) Process(clientID int64, movements []domain.Movement) (*Result, error) {
	snap, err := e.loader.Load(clientID)
	if err != nil {
		return nil, err
	}
	return e.Compute(snap, movements)
}

// Compute runs one pass over a snapshot. It has no side effects.
func (e *Engine) Compute(snap *Snapshot, movements []domain.Movement) (*Result, error) {
	mv, err := movementMap(snap, movements)
	if err != nil {
		return nil, err
	}
	return e.compute(snap, mv)
}

// movementMap validates the requested movements and keys them by goal.
// Every goal of the client gets an entry, zero when not requested.
func movementMap(snap *Snapshot, movements []domain.Movement) (map[int64]float64, error) {
	mv := make(map[int64]float64, len(snap.Goals))
	for _, g := range snap.Goals {
		mv[g.ID] = 0
	}

	seen := make(map[int64]bool, len(movements))
	for _, m := range movements {
		if _, ok := mv[m.GoalID]; !ok {
			return nil, &domain.ValidationError{
				Field:   "goal_id",
				Message: fmt.Sprintf("goal %d does not belong to client %d", m.GoalID, snap.ClientID),
			}
		}
		if math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
			return nil, &domain.ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("movement for goal %d is not a finite number", m.GoalID),
			}
		}
		if seen[m.GoalID] {
			return nil, &domain.ValidationError{
				Field:   "goal_id",
				Message: fmt.Sprintf("goal %d appears in more than one movement", m.GoalID),
			}
		}
		seen[m.GoalID] = true
		mv[m.GoalID] = m.Amount
	}
	return mv, nil
}

func (e *Engine) compute(snap *Snapshot, mv map[int64]float64) (*Result, error) {
	goals := make([]domain.Goal, len(snap.Goals))
	copy(goals, snap.Goals)
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })

	current := allocation.Project(goals, snap.Slices, snap.ClassTotals)

	res := &Result{
		ComputedAt:  snap.Now,
		Rates:       snap.Rates,
		ClassTotals: snap.ClassTotals,
		ClientID:    snap.ClientID,
		Goals:       make([]GoalResult, 0, len(goals)),
		Movements:   make([]domain.Movement, 0, len(goals)),
		Transfers:   []Transfer{},
	}

	var assigned domain.ClassVector
	for _, g := range goals {
		cur := current[g.ID]
		amount := mv[g.ID]

		if amount < 0 && -amount > cur.Total {
			return nil, &domain.InsufficientFundsError{GoalID: g.ID, Requested: -amount, Available: cur.Total}
		}

		horizon := g.HorizonMonths(snap.Now)
		row, err := e.resolver.TargetMatrixAt(g, snap.Now)
		if err != nil {
			return nil, err
		}

		dist := Distribute(amount, row)
		newValue := cur.Values.Add(dist)
		newTotal := newValue.Total()
		target := row.Allocation().Scale(newTotal / 100)

		res.Goals = append(res.Goals, GoalResult{
			Name:                g.Name,
			Type:                g.Type,
			Row:                 row,
			Current:             cur.Values,
			DistributedMovement: dist,
			NewValue:            newValue,
			TargetState:         target,
			Gap:                 target.Sub(newValue),
			CurrentPercent:      cur.Percent,
			GoalID:              g.ID,
			HorizonMonths:       horizon,
			MatrixHorizon:       row.HorizonMonths,
			Movement:            amount,
			CurrentTotal:        cur.Total,
			NewTotal:            newTotal,
			PresentValueIdeal:   snap.Rates.PresentValue(g.TargetValue, horizon),
		})
		res.Movements = append(res.Movements, domain.Movement{GoalID: g.ID, Amount: amount})

		res.TotalMovement += amount
		res.MovementByClass = res.MovementByClass.Add(dist)
		res.GapByClass = res.GapByClass.Add(target.Sub(newValue))
		assigned = assigned.Add(cur.Values)
	}

	res.PoolAfterMovement = snap.ClassTotals.Add(res.MovementByClass)
	res.PoolAfterRedistribution = res.PoolAfterMovement.Add(res.GapByClass)
	res.UnassignedCapital = snap.ClassTotals.Sub(assigned)

	for i := range res.Goals {
		g := &res.Goals[i]
		for _, c := range domain.AllRiskClasses {
			if pool := res.PoolAfterRedistribution[c]; pool != 0 {
				g.NewPercent[c] = g.TargetState[c] / pool * 100
			}
		}
	}

	res.Instructions = make([]ClassInstruction, 0, domain.NumRiskClasses)
	res.NetInstructions = make([]ClassInstruction, 0, domain.NumRiskClasses)
	for _, c := range domain.AllRiskClasses {
		res.Instructions = append(res.Instructions, Classify(c, res.GapByClass[c], e.cfg.GapTolerance))
		res.NetInstructions = append(res.NetInstructions, Classify(c, res.MovementByClass[c]+res.GapByClass[c], e.cfg.GapTolerance))
	}

	res.SnapshotVersion = snap.Version()
	return res, nil
}
