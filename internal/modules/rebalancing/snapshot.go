package rebalancing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/allocation"
)

// Snapshot is everything a rebalance pass reads, captured once so the
// computation never observes a partial update.
type Snapshot struct {
	Now         time.Time
	Rates       Rates
	Slices      map[int64]domain.OwnershipSlice
	Goals       []domain.Goal
	ClassTotals domain.ClassVector
	ClientID    int64
}

// Version fingerprints the persisted state the snapshot was built from. A
// staged result whose version no longer matches was computed on stale data.
func (s *Snapshot) Version() string {
	h := sha256.New()
	fmt.Fprintf(h, "client:%d\n", s.ClientID)
	for _, c := range domain.AllRiskClasses {
		fmt.Fprintf(h, "total:%s:%s\n", c, strconv.FormatFloat(s.ClassTotals[c], 'g', -1, 64))
	}

	goals := make([]domain.Goal, len(s.Goals))
	copy(goals, s.Goals)
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })

	for _, g := range goals {
		fmt.Fprintf(h, "goal:%d:%s:%s:%s\n", g.ID, g.Type,
			strconv.FormatFloat(g.TargetValue, 'g', -1, 64), g.TargetDate.Format("2006-01-02"))
		if slice, ok := s.Slices[g.ID]; ok {
			fmt.Fprintf(h, "slice:%d:%d", g.ID, slice.UpdatedAt.Unix())
			for _, p := range slice.Percent {
				fmt.Fprintf(h, ":%s", strconv.FormatFloat(p, 'g', -1, 64))
			}
			fmt.Fprintln(h)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotLoader reads a client's state from the stores
type SnapshotLoader struct {
	totals    allocation.ClassTotaler
	goals     domain.GoalStore
	slices    domain.SliceStore
	estimator *Estimator
	now       func() time.Time
}

// NewSnapshotLoader creates a loader. A nil clock uses time.Now.
func NewSnapshotLoader(
	totals allocation.ClassTotaler,
	goals domain.GoalStore,
	slices domain.SliceStore,
	estimator *Estimator,
	now func() time.Time,
) *SnapshotLoader {
	if now == nil {
		now = time.Now
	}
	return &SnapshotLoader{
		totals:    totals,
		goals:     goals,
		slices:    slices,
		estimator: estimator,
		now:       now,
	}
}

// Load captures the client's class totals, goals, slices and rates
func (l *SnapshotLoader) Load(clientID int64) (*Snapshot, error) {
	totals, err := l.totals.ClassTotals(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute class totals: %w", err)
	}
	goals, err := l.goals.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := l.slices.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slices: %w", err)
	}
	rates, err := l.estimator.Rates()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Now:         l.now(),
		Rates:       rates,
		Slices:      slices,
		Goals:       goals,
		ClassTotals: totals,
		ClientID:    clientID,
	}, nil
}
