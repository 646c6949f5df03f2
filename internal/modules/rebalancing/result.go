package rebalancing

import (
	"math"
	"time"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/matrix"
)

// Action is the consolidated instruction for one risk class.
type Action string

const (
	ActionBuy          Action = "BUY"
	ActionSell         Action = "SELL"
	ActionRedistribute Action = "REDISTRIBUTE"
)

// ClassInstruction is the action for one class. Amount is always positive,
// Value keeps the sign.
type ClassInstruction struct {
	Class  domain.RiskClass `json:"class" msgpack:"class"`
	Action Action           `json:"action" msgpack:"action"`
	Amount float64          `json:"amount" msgpack:"amount"`
	Value  float64          `json:"value" msgpack:"value"`
}

// Classify turns a signed per-class value into an instruction. Values whose
// magnitude is below tolerance only reshuffle percentages.
func Classify(class domain.RiskClass, value, tolerance float64) ClassInstruction {
	inst := ClassInstruction{Class: class, Amount: math.Abs(value), Value: value}
	switch {
	case math.Abs(value) < tolerance:
		inst.Action = ActionRedistribute
	case value > 0:
		inst.Action = ActionBuy
	default:
		inst.Action = ActionSell
	}
	return inst
}

// GoalResult is the per goal breakdown of a rebalance pass.
type GoalResult struct {
	Name                string             `json:"name" msgpack:"name"`
	Type                domain.GoalType    `json:"goal_type" msgpack:"goal_type"`
	Row                 matrix.Row         `json:"matrix_row" msgpack:"matrix_row"`
	Current             domain.ClassVector `json:"current" msgpack:"current"`
	DistributedMovement domain.ClassVector `json:"distributed_movement" msgpack:"distributed_movement"`
	NewValue            domain.ClassVector `json:"new_value" msgpack:"new_value"`
	TargetState         domain.ClassVector `json:"target_state" msgpack:"target_state"`
	Gap                 domain.ClassVector `json:"gap" msgpack:"gap"`
	CurrentPercent      domain.ClassVector `json:"current_percent" msgpack:"current_percent"`
	NewPercent          domain.ClassVector `json:"new_percent" msgpack:"new_percent"`
	GoalID              int64              `json:"goal_id" msgpack:"goal_id"`
	HorizonMonths       int                `json:"horizon_months" msgpack:"horizon_months"`
	MatrixHorizon       int                `json:"matrix_horizon" msgpack:"matrix_horizon"`
	Movement            float64            `json:"movement" msgpack:"movement"`
	CurrentTotal        float64            `json:"current_total" msgpack:"current_total"`
	NewTotal            float64            `json:"new_total" msgpack:"new_total"`
	PresentValueIdeal   float64            `json:"present_value_ideal" msgpack:"present_value_ideal"`
}

// Surplus is how far the goal's new total exceeds its present value ideal.
// Negative values are deficits.
func (g GoalResult) Surplus() float64 {
	return g.NewTotal - g.PresentValueIdeal
}

// Transfer records movement rerouted from a surplus goal to a deficit goal.
type Transfer struct {
	From      int64   `json:"from_goal_id" msgpack:"from_goal_id"`
	To        int64   `json:"to_goal_id" msgpack:"to_goal_id"`
	Amount    float64 `json:"amount" msgpack:"amount"`
	Iteration int     `json:"iteration" msgpack:"iteration"`
}

// Result is the outcome of a rebalance pass. It is not persisted until applied.
type Result struct {
	ComputedAt              time.Time          `json:"computed_at" msgpack:"computed_at"`
	SnapshotVersion         string             `json:"snapshot_version" msgpack:"snapshot_version"`
	Rates                   Rates              `json:"rates" msgpack:"rates"`
	Goals                   []GoalResult       `json:"goals" msgpack:"goals"`
	Instructions            []ClassInstruction `json:"instructions" msgpack:"instructions"`
	NetInstructions         []ClassInstruction `json:"net_instructions" msgpack:"net_instructions"`
	Transfers               []Transfer         `json:"transfers" msgpack:"transfers"`
	Movements               []domain.Movement  `json:"movements" msgpack:"movements"`
	ClassTotals             domain.ClassVector `json:"class_totals" msgpack:"class_totals"`
	MovementByClass         domain.ClassVector `json:"movement_by_class" msgpack:"movement_by_class"`
	GapByClass              domain.ClassVector `json:"gap_by_class" msgpack:"gap_by_class"`
	PoolAfterMovement       domain.ClassVector `json:"pool_after_movement" msgpack:"pool_after_movement"`
	PoolAfterRedistribution domain.ClassVector `json:"pool_after_redistribution" msgpack:"pool_after_redistribution"`
	UnassignedCapital       domain.ClassVector `json:"unassigned_capital" msgpack:"unassigned_capital"`
	ClientID                int64              `json:"client_id" msgpack:"client_id"`
	TotalMovement           float64            `json:"total_movement" msgpack:"total_movement"`
	Iterations              int                `json:"iterations" msgpack:"iterations"`
	CascadeApplied          bool               `json:"cascade_applied" msgpack:"cascade_applied"`
}

// Goal returns the breakdown of one goal, or nil.
func (r *Result) Goal(goalID int64) *GoalResult {
	for i := range r.Goals {
		if r.Goals[i].GoalID == goalID {
			return &r.Goals[i]
		}
	}
	return nil
}

// NewPercentSums adds each class's new percentage across all goals
func (r *Result) NewPercentSums() domain.ClassVector {
	var sums domain.ClassVector
	for _, g := range r.Goals {
		sums = sums.Add(g.NewPercent)
	}
	return sums
}

// GapMagnitude is the sum of absolute class gaps
func (r *Result) GapMagnitude() float64 {
	var total float64
	for _, g := range r.GapByClass {
		total += math.Abs(g)
	}
	return total
}
