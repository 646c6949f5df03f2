package allocation_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/portfolio"
	testingpkg "github.com/aristath/geld/internal/testing"
)

type fixture struct {
	db          *database.DB
	slices      *allocation.Repository
	maintenance *allocation.Maintenance
	clientID    int64
	goalA       int64
	goalB       int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "advisory")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	goalRepo := goals.NewRepository(db.Conn(), log)
	sliceRepo := allocation.NewRepository(db.Conn(), log)
	agg := portfolio.NewAggregator(portfolio.NewPositionRepository(db.Conn(), log))

	clientID := testingpkg.SeedClient(t, db, "Ana")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	goalA := testingpkg.SeedGoal(t, db, clientID, "House", domain.GoalTypeGeneral, 300000, start, start.AddDate(5, 0, 0))
	goalB := testingpkg.SeedGoal(t, db, clientID, "Retire", domain.GoalTypeRetirement, 900000, start, start.AddDate(20, 0, 0))
	testingpkg.SeedClassTotals(t, db, clientID, domain.ClassVector{10000, 20000, 5000, 2000})

	return &fixture{
		db:     db,
		slices: sliceRepo,
		maintenance: allocation.NewMaintenance(
			db.Conn(), goalRepo, sliceRepo, agg, locks.NewClientLocks(),
			allocation.DefaultMaintenanceConfig(), log,
		),
		clientID: clientID,
		goalA:    goalA,
		goalB:    goalB,
	}
}

func TestRepository_UpsertAndList(t *testing.T) {
	f := newFixture(t)

	got, err := f.slices.GetByGoal(f.goalA)
	require.NoError(t, err)
	assert.Nil(t, got)

	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	err = database.WithTransaction(f.db.Conn(), func(tx *sql.Tx) error {
		if err := f.slices.UpsertTx(tx, domain.OwnershipSlice{GoalID: f.goalA, Percent: domain.ClassVector{10, 20, 30, 40}, UpdatedAt: when}); err != nil {
			return err
		}
		return f.slices.UpsertTx(tx, domain.OwnershipSlice{GoalID: f.goalA, Percent: domain.ClassVector{60, 70, 80, 90}, UpdatedAt: when})
	})
	require.NoError(t, err)

	got, err = f.slices.GetByGoal(f.goalA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ClassVector{60, 70, 80, 90}, got.Percent)
	assert.Equal(t, when, got.UpdatedAt)

	all, err := f.slices.ListByClient(f.clientID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	other, err := f.slices.ListByClient(f.clientID + 100)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMaintenance_ValidateSlices(t *testing.T) {
	f := newFixture(t)

	v, err := f.maintenance.ValidateSlices(f.clientID)
	require.NoError(t, err)
	assert.True(t, v.Valid, "no slices means nothing to violate")

	testingpkg.SeedSlice(t, f.db, f.goalA, domain.ClassVector{60, 50, 100, 0})
	testingpkg.SeedSlice(t, f.db, f.goalB, domain.ClassVector{40, 45, 0, 0})

	v, err = f.maintenance.ValidateSlices(f.clientID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.ClassVector{100, 95, 100, 0}, v.Sums)
}

func TestMaintenance_RepairSlicesFromPool(t *testing.T) {
	f := newFixture(t)
	testingpkg.SeedSlice(t, f.db, f.goalA, domain.ClassVector{30, 50, 40, 0})
	testingpkg.SeedSlice(t, f.db, f.goalB, domain.ClassVector{10, 30, 40, 0})

	repaired, err := f.maintenance.RepairSlicesFromPool(f.clientID)
	require.NoError(t, err)

	assert.InDelta(t, 75, repaired[f.goalA][domain.LowRiskFixedIncome], 1e-9)
	assert.InDelta(t, 25, repaired[f.goalB][domain.LowRiskFixedIncome], 1e-9)
	assert.InDelta(t, 62.5, repaired[f.goalA][domain.LowRiskCreditSpread], 1e-9)
	assert.InDelta(t, 50, repaired[f.goalA][domain.Moderate], 1e-9)
	assert.Equal(t, 0.0, repaired[f.goalA][domain.High])

	v, err := f.maintenance.ValidateSlices(f.clientID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestMaintenance_SetSlicesManually(t *testing.T) {
	f := newFixture(t)
	testingpkg.SeedSlice(t, f.db, f.goalA, domain.ClassVector{50, 50, 50, 50})
	testingpkg.SeedSlice(t, f.db, f.goalB, domain.ClassVector{50, 50, 50, 50})

	t.Run("rejects sums off by more than 0.01", func(t *testing.T) {
		_, err := f.maintenance.SetSlicesManually(f.clientID, map[int64]domain.ClassVector{
			f.goalA: {70, 50, 50, 50},
		})
		assert.True(t, domain.IsValidation(err))

		stored, err := f.slices.GetByGoal(f.goalA)
		require.NoError(t, err)
		assert.Equal(t, 50.0, stored.Percent[domain.LowRiskFixedIncome])
	})

	t.Run("rejects foreign goal", func(t *testing.T) {
		_, err := f.maintenance.SetSlicesManually(f.clientID, map[int64]domain.ClassVector{9999: {}})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("rejects out of range", func(t *testing.T) {
		_, err := f.maintenance.SetSlicesManually(f.clientID, map[int64]domain.ClassVector{
			f.goalA: {-10, 50, 50, 50},
			f.goalB: {110, 50, 50, 50},
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("writes a consistent edit", func(t *testing.T) {
		merged, err := f.maintenance.SetSlicesManually(f.clientID, map[int64]domain.ClassVector{
			f.goalA: {70, 50, 100, 0},
			f.goalB: {30, 50, 0, 0},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ClassVector{70, 50, 100, 0}, merged[f.goalA])

		stored, err := f.slices.GetByGoal(f.goalB)
		require.NoError(t, err)
		assert.Equal(t, domain.ClassVector{30, 50, 0, 0}, stored.Percent)
	})
}

func TestMaintenance_ResetAndUnassigned(t *testing.T) {
	f := newFixture(t)
	testingpkg.SeedSlice(t, f.db, f.goalA, domain.ClassVector{50, 100, 0, 0})

	report, err := f.maintenance.UnassignedCapital(f.clientID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClassVector{5000, 0, 5000, 2000}, report.Unassigned)
	assert.InDelta(t, 12000, report.Total, 1e-9)

	removed, err := f.maintenance.ResetSlices(f.clientID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	report, err = f.maintenance.UnassignedCapital(f.clientID)
	require.NoError(t, err)
	assert.Equal(t, report.ClassTotals, report.Unassigned)
}

func TestMaintenance_RedistributeAfterDeletionTx(t *testing.T) {
	f := newFixture(t)
	testingpkg.SeedSlice(t, f.db, f.goalA, domain.ClassVector{60, 100, 0, 0})
	testingpkg.SeedSlice(t, f.db, f.goalB, domain.ClassVector{40, 0, 100, 0})

	err := database.WithTransaction(f.db.Conn(), func(tx *sql.Tx) error {
		return f.maintenance.RedistributeAfterDeletionTx(tx, f.clientID, f.goalA)
	})
	require.NoError(t, err)

	stored, err := f.slices.GetByGoal(f.goalB)
	require.NoError(t, err)
	assert.Equal(t, domain.ClassVector{100, 100, 100, 0}, stored.Percent)

	err = database.WithTransaction(f.db.Conn(), func(tx *sql.Tx) error {
		return f.maintenance.RedistributeAfterDeletionTx(tx, f.clientID, 424242)
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
