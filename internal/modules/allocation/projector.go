package allocation

import (
	"fmt"
	"sort"

	"github.com/aristath/geld/internal/domain"
)

// GoalAllocation is the value a goal currently owns in each class
type GoalAllocation struct {
	Values  domain.ClassVector `json:"values" msgpack:"values"`
	Percent domain.ClassVector `json:"percent" msgpack:"percent"`
	GoalID  int64              `json:"goal_id" msgpack:"goal_id"`
	Total   float64            `json:"total" msgpack:"total"`
}

// Project applies each goal's slice to the class totals. Goals without a
// slice own nothing.
func Project(goals []domain.Goal, slices map[int64]domain.OwnershipSlice, totals domain.ClassVector) map[int64]GoalAllocation {
	result := make(map[int64]GoalAllocation, len(goals))
	for _, g := range goals {
		alloc := GoalAllocation{GoalID: g.ID}
		if s, ok := slices[g.ID]; ok {
			alloc.Percent = s.Percent
			for _, c := range domain.AllRiskClasses {
				alloc.Values[c] = totals[c] * s.Percent[c] / 100
			}
		}
		alloc.Total = alloc.Values.Total()
		result[g.ID] = alloc
	}
	return result
}

// Assigned sums the allocations per class
func Assigned(allocs map[int64]GoalAllocation) domain.ClassVector {
	var sum domain.ClassVector
	for _, id := range sortedIDs(allocs) {
		sum = sum.Add(allocs[id].Values)
	}
	return sum
}

// ClassTotaler computes a client's class totals
type ClassTotaler interface {
	ClassTotals(clientID int64) (domain.ClassVector, error)
}

// Projector reads goals and slices and projects them over class totals
type Projector struct {
	goals  domain.GoalStore
	slices domain.SliceStore
}

// NewProjector creates a new goal allocation projector
func NewProjector(goals domain.GoalStore, slices domain.SliceStore) *Projector {
	return &Projector{goals: goals, slices: slices}
}

// CurrentAllocations returns each goal's current value per class
func (p *Projector) CurrentAllocations(clientID int64, totals domain.ClassVector) (map[int64]GoalAllocation, error) {
	goals, err := p.goals.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := p.slices.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slices: %w", err)
	}
	return Project(goals, slices, totals), nil
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
