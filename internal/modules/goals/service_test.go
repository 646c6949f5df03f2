package goals_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/indicators"
	"github.com/aristath/geld/internal/modules/portfolio"
	testingpkg "github.com/aristath/geld/internal/testing"
	"github.com/aristath/geld/pkg/formulas"
)

type fixture struct {
	db       *database.DB
	service  *goals.Service
	slices   *allocation.Repository
	bus      *events.Bus
	clientID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "advisory")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	repo := goals.NewRepository(db.Conn(), log)
	sliceRepo := allocation.NewRepository(db.Conn(), log)
	agg := portfolio.NewAggregator(portfolio.NewPositionRepository(db.Conn(), log))
	clientLocks := locks.NewClientLocks()
	maintenance := allocation.NewMaintenance(db.Conn(), repo, sliceRepo, agg, clientLocks, allocation.DefaultMaintenanceConfig(), log)
	inflation := indicators.NewRepository(db.Conn(), indicators.DefaultFallbackInflation, log)
	bus := events.NewBus(log)

	service := goals.NewService(db.Conn(), repo, sliceRepo, maintenance, agg, inflation, clientLocks, events.NewManager(bus, log), 3.5, log)

	return &fixture{
		db:       db,
		service:  service,
		slices:   sliceRepo,
		bus:      bus,
		clientID: testingpkg.SeedClient(t, db, "Dora"),
	}
}

func (f *fixture) goal(name string, target float64, months int) domain.Goal {
	now := time.Now().UTC()
	return domain.Goal{
		ClientID:    f.clientID,
		Name:        name,
		Type:        domain.GoalTypeGeneral,
		TargetValue: target,
		StartDate:   time.Date(now.Year()-1, now.Month(), 1, 0, 0, 0, 0, time.UTC),
		TargetDate:  time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0),
	}
}

func TestService_CreateGetList(t *testing.T) {
	f := newFixture(t)

	var created []events.EventType
	f.bus.Subscribe(events.GoalCreated, func(e *events.Event) { created = append(created, e.Type) })

	g, err := f.service.Create(f.goal("House", 300000, 60))
	require.NoError(t, err)
	assert.NotZero(t, g.ID)
	assert.Equal(t, "House", g.Name)
	assert.Len(t, created, 1)

	got, err := f.service.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, 300000.0, got.TargetValue)

	list, err := f.service.List(f.clientID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	bad := f.goal("", 1000, 12)
	_, err := f.service.Create(bad)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	orphan := f.goal("Trip", 1000, 12)
	orphan.ClientID = 9999
	_, err = f.service.Create(orphan)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.service.List(9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	g, err := f.service.Create(f.goal("House", 300000, 60))
	require.NoError(t, err)

	change := *g
	change.Name = "Bigger house"
	change.TargetValue = 450000
	change.ClientID = 42

	updated, err := f.service.Update(change)
	require.NoError(t, err)
	assert.Equal(t, "Bigger house", updated.Name)
	assert.Equal(t, f.clientID, updated.ClientID)

	change.ID = 9999
	_, err = f.service.Update(change)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteRedistributesSlice(t *testing.T) {
	f := newFixture(t)
	a, err := f.service.Create(f.goal("House", 300000, 60))
	require.NoError(t, err)
	b, err := f.service.Create(f.goal("Car", 80000, 24))
	require.NoError(t, err)
	testingpkg.SeedSlice(t, f.db, a.ID, domain.ClassVector{60, 100, 0, 0})
	testingpkg.SeedSlice(t, f.db, b.ID, domain.ClassVector{40, 0, 100, 0})

	var deleted int
	f.bus.Subscribe(events.GoalDeleted, func(*events.Event) { deleted++ })

	require.NoError(t, f.service.Delete(a.ID))

	_, err = f.service.Get(a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	slices, err := f.slices.ListByClient(f.clientID)
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, domain.ClassVector{100, 100, 100, 0}, slices[b.ID].Percent)
	assert.Equal(t, 1, deleted)

	assert.ErrorIs(t, f.service.Delete(a.ID), domain.ErrNotFound)
}

func TestService_DeleteLastGoal(t *testing.T) {
	f := newFixture(t)
	a, err := f.service.Create(f.goal("House", 300000, 60))
	require.NoError(t, err)
	testingpkg.SeedSlice(t, f.db, a.ID, domain.ClassVector{100, 100, 100, 100})

	require.NoError(t, f.service.Delete(a.ID))

	slices, err := f.slices.ListByClient(f.clientID)
	require.NoError(t, err)
	assert.Empty(t, slices)
}

func TestService_ContributionPlan(t *testing.T) {
	f := newFixture(t)
	testingpkg.SeedClassTotals(t, f.db, f.clientID, domain.ClassVector{10000, 10000, 0, 0})

	house, err := f.service.Create(f.goal("House", 300000, 60))
	require.NoError(t, err)
	done, err := f.service.Create(f.goal("Laptop", 5000, 12))
	require.NoError(t, err)
	testingpkg.SeedSlice(t, f.db, house.ID, domain.ClassVector{50, 50, 0, 0})
	testingpkg.SeedSlice(t, f.db, done.ID, domain.ClassVector{50, 50, 0, 0})

	plan, err := f.service.ContributionPlan(f.clientID)
	require.NoError(t, err)
	require.Len(t, plan.Goals, 2)
	assert.Equal(t, indicators.DefaultFallbackInflation, plan.AnnualInflationPct)

	h := plan.Goals[0]
	assert.Equal(t, house.ID, h.GoalID)
	assert.InDelta(t, 10000, h.CurrentValue, 1e-9)
	assert.Equal(t, 60, h.HorizonMonths)
	expected := formulas.RequiredMonthlyContribution(10000, 300000, 60, 4.5, 3.5)
	assert.InDelta(t, expected, h.MonthlyContribution, 1e-6)
	assert.Greater(t, h.MonthlyContribution, 0.0)

	// already funded beyond target
	assert.Zero(t, plan.Goals[1].MonthlyContribution)
	assert.InDelta(t, expected, plan.TotalMonthly, 1e-6)
}
