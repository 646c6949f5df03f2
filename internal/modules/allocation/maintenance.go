package allocation

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/locks"
)

// MaintenanceConfig holds the tolerances used when checking slice sums
type MaintenanceConfig struct {
	SliceTolerance  float64 // validation of stored slices, in percentage points
	ManualTolerance float64 // manual edits must sum to 100 within this
}

// DefaultMaintenanceConfig returns the standard tolerances
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{SliceTolerance: 1.0, ManualTolerance: 0.01}
}

// SliceWriter is the transactional part of the slice store used for bulk operations
type SliceWriter interface {
	domain.SliceStore
	DeleteByClientTx(tx *sql.Tx, clientID int64) (int64, error)
}

// Validation is the outcome of a slice sum check
type Validation struct {
	Sums  domain.ClassVector `json:"sums"`
	Valid bool               `json:"valid"`
}

// UnassignedReport shows capital not claimed by any goal
type UnassignedReport struct {
	ClassTotals domain.ClassVector `json:"class_totals"`
	Assigned    domain.ClassVector `json:"assigned"`
	Unassigned  domain.ClassVector `json:"unassigned"`
	Total       float64            `json:"total_unassigned"`
}

// Maintenance validates, repairs and edits a client's slices outside the
// normal rebalance flow.
type Maintenance struct {
	db     *sql.DB
	goals  domain.GoalStore
	slices SliceWriter
	totals ClassTotaler
	locks  *locks.ClientLocks
	cfg    MaintenanceConfig
	now    func() time.Time
	log    zerolog.Logger
}

// NewMaintenance creates the slice maintenance service
func NewMaintenance(
	db *sql.DB,
	goals domain.GoalStore,
	slices SliceWriter,
	totals ClassTotaler,
	clientLocks *locks.ClientLocks,
	cfg MaintenanceConfig,
	log zerolog.Logger,
) *Maintenance {
	return &Maintenance{
		db:     db,
		goals:  goals,
		slices: slices,
		totals: totals,
		locks:  clientLocks,
		cfg:    cfg,
		now:    time.Now,
		log:    log.With().Str("service", "slice_maintenance").Logger(),
	}
}

// SumSlices adds up each class across all slices
func SumSlices(slices map[int64]domain.OwnershipSlice) domain.ClassVector {
	var sums domain.ClassVector
	for _, id := range sortedIDs(slices) {
		sums = sums.Add(slices[id].Percent)
	}
	return sums
}

// SumsValid reports whether every nonzero class sum is within tolerance of 100.
// A class nobody owns sums to zero and is valid.
func SumsValid(sums domain.ClassVector, tolerance float64) bool {
	for _, s := range sums {
		if s != 0 && math.Abs(s-100) > tolerance {
			return false
		}
	}
	return true
}

// RedistributeDeleted spreads a deleted goal's percentages over the survivors,
// proportionally to what each survivor already holds in the class. When no
// survivor holds the class the share is split equally. With no survivors the
// deleted share is dropped.
func RedistributeDeleted(deleted domain.ClassVector, survivors map[int64]domain.ClassVector) map[int64]domain.ClassVector {
	result := make(map[int64]domain.ClassVector, len(survivors))
	if len(survivors) == 0 {
		return result
	}

	ids := sortedIDs(survivors)
	for _, id := range ids {
		result[id] = survivors[id]
	}

	for _, c := range domain.AllRiskClasses {
		if deleted[c] == 0 {
			continue
		}

		var held float64
		for _, id := range ids {
			held += survivors[id][c]
		}

		for _, id := range ids {
			v := result[id]
			if held > 0 {
				v[c] += survivors[id][c] / held * deleted[c]
			} else {
				v[c] += deleted[c] / float64(len(ids))
			}
			result[id] = v
		}
	}

	return result
}

// RepairFromValues recomputes percentages from absolute values, dividing by
// the sum of all goals' values in the class rather than the class total.
func RepairFromValues(values map[int64]domain.ClassVector) map[int64]domain.ClassVector {
	var sums domain.ClassVector
	for _, v := range values {
		sums = sums.Add(v)
	}

	result := make(map[int64]domain.ClassVector, len(values))
	for id, v := range values {
		var pct domain.ClassVector
		for _, c := range domain.AllRiskClasses {
			if sums[c] > 0 {
				pct[c] = v[c] / sums[c] * 100
			}
		}
		result[id] = pct
	}
	return result
}

// ValidateSlices checks the client's slice sums
func (m *Maintenance) ValidateSlices(clientID int64) (Validation, error) {
	slices, err := m.slices.ListByClient(clientID)
	if err != nil {
		return Validation{}, fmt.Errorf("failed to list slices: %w", err)
	}

	sums := SumSlices(slices)
	return Validation{Sums: sums, Valid: SumsValid(sums, m.cfg.SliceTolerance)}, nil
}

// RedistributeAfterDeletionTx hands the goal's slice to the client's other
// goals. It must run in the same transaction that deletes the goal, before the delete.
func (m *Maintenance) RedistributeAfterDeletionTx(tx *sql.Tx, clientID, goalID int64) error {
	goals, err := m.goals.ListByClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := m.slices.ListByClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to list slices: %w", err)
	}

	survivors := make(map[int64]domain.ClassVector, len(goals))
	found := false
	for _, g := range goals {
		if g.ID == goalID {
			found = true
			continue
		}
		survivors[g.ID] = slices[g.ID].Percent
	}
	if !found {
		return fmt.Errorf("goal %d of client %d: %w", goalID, clientID, domain.ErrNotFound)
	}

	deleted := slices[goalID].Percent
	if deleted.IsZero() {
		return nil
	}

	now := m.now()
	updated := RedistributeDeleted(deleted, survivors)
	for _, id := range sortedIDs(updated) {
		if err := m.slices.UpsertTx(tx, domain.OwnershipSlice{GoalID: id, Percent: updated[id], UpdatedAt: now}); err != nil {
			return err
		}
	}

	m.log.Info().
		Int64("client_id", clientID).
		Int64("goal_id", goalID).
		Int("survivors", len(updated)).
		Msg("Redistributed slice of deleted goal")

	return nil
}

// RepairSlicesFromPool rewrites the client's slices from each goal's current
// value, absorbing any unassigned capital proportionally.
func (m *Maintenance) RepairSlicesFromPool(clientID int64) (map[int64]domain.ClassVector, error) {
	unlock := m.locks.Lock(clientID)
	defer unlock()

	totals, err := m.totals.ClassTotals(clientID)
	if err != nil {
		return nil, err
	}
	goals, err := m.goals.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := m.slices.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slices: %w", err)
	}

	allocs := Project(goals, slices, totals)
	values := make(map[int64]domain.ClassVector, len(allocs))
	for id, a := range allocs {
		values[id] = a.Values
	}
	repaired := RepairFromValues(values)

	if err := m.writeAll(repaired); err != nil {
		return nil, err
	}

	m.log.Info().
		Int64("client_id", clientID).
		Int("goals", len(repaired)).
		Msg("Slices repaired from pool")

	return repaired, nil
}

// SetSlicesManually overlays the given percentages on the stored slices and
// writes them when every class still sums to 100.
func (m *Maintenance) SetSlicesManually(clientID int64, percents map[int64]domain.ClassVector) (map[int64]domain.ClassVector, error) {
	unlock := m.locks.Lock(clientID)
	defer unlock()

	goals, err := m.goals.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := m.slices.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slices: %w", err)
	}

	merged := make(map[int64]domain.ClassVector, len(goals))
	for _, g := range goals {
		merged[g.ID] = slices[g.ID].Percent
	}

	for goalID, pct := range percents {
		if _, ok := merged[goalID]; !ok {
			return nil, &domain.ValidationError{Field: "goal_id", Message: fmt.Sprintf("goal %d does not belong to client %d", goalID, clientID)}
		}
		if !pct.IsFinite() {
			return nil, &domain.ValidationError{Field: "percent", Message: fmt.Sprintf("goal %d has a non numeric percentage", goalID)}
		}
		for _, c := range domain.AllRiskClasses {
			if pct[c] < 0 || pct[c] > 100 {
				return nil, &domain.ValidationError{Field: "percent", Message: fmt.Sprintf("goal %d %s must be between 0 and 100", goalID, c)}
			}
		}
		merged[goalID] = pct
	}

	var sums domain.ClassVector
	for _, pct := range merged {
		sums = sums.Add(pct)
	}
	for _, c := range domain.AllRiskClasses {
		if sums[c] != 0 && math.Abs(sums[c]-100) > m.cfg.ManualTolerance {
			return nil, &domain.ValidationError{Field: c.String(), Message: fmt.Sprintf("slices sum to %.2f%%, expected 100%%", sums[c])}
		}
	}

	if err := m.writeAll(merged); err != nil {
		return nil, err
	}

	m.log.Info().Int64("client_id", clientID).Msg("Slices set manually")
	return merged, nil
}

// ResetSlices deletes every slice of the client
func (m *Maintenance) ResetSlices(clientID int64) (int64, error) {
	unlock := m.locks.Lock(clientID)
	defer unlock()

	var removed int64
	err := database.WithTransaction(m.db, func(tx *sql.Tx) error {
		n, err := m.slices.DeleteByClientTx(tx, clientID)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}

	m.log.Info().Int64("client_id", clientID).Int64("removed", removed).Msg("Slices reset")
	return removed, nil
}

// UnassignedCapital reports class totals minus everything goals currently own
func (m *Maintenance) UnassignedCapital(clientID int64) (UnassignedReport, error) {
	totals, err := m.totals.ClassTotals(clientID)
	if err != nil {
		return UnassignedReport{}, err
	}
	goals, err := m.goals.ListByClient(clientID)
	if err != nil {
		return UnassignedReport{}, fmt.Errorf("failed to list goals: %w", err)
	}
	slices, err := m.slices.ListByClient(clientID)
	if err != nil {
		return UnassignedReport{}, fmt.Errorf("failed to list slices: %w", err)
	}

	assigned := Assigned(Project(goals, slices, totals))
	unassigned := totals.Sub(assigned)

	return UnassignedReport{
		ClassTotals: totals,
		Assigned:    assigned,
		Unassigned:  unassigned,
		Total:       unassigned.Total(),
	}, nil
}

func (m *Maintenance) writeAll(percents map[int64]domain.ClassVector) error {
	now := m.now()
	return database.WithTransaction(m.db, func(tx *sql.Tx) error {
		for _, id := range sortedIDs(percents) {
			slice := domain.OwnershipSlice{GoalID: id, Percent: percents[id], UpdatedAt: now}
			if err := m.slices.UpsertTx(tx, slice); err != nil {
				return err
			}
		}
		return nil
	})
}
