package rebalancing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/matrix"
	testingpkg "github.com/aristath/geld/internal/testing"
)

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

type staticTotals map[int64]domain.ClassVector

func (s staticTotals) ClassTotals(clientID int64) (domain.ClassVector, error) {
	return s[clientID], nil
}

type engineFixture struct {
	goals  *testingpkg.MockGoalStore
	slices *testingpkg.MockSliceStore
	totals staticTotals
	engine *Engine
	loader *SnapshotLoader
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	clock := func() time.Time { return testNow }

	f := &engineFixture{
		goals:  testingpkg.NewMockGoalStore(),
		slices: testingpkg.NewMockSliceStore(),
		totals: staticTotals{},
	}
	f.loader = NewSnapshotLoader(f.totals, f.goals, f.slices, NewEstimator(PVModeReal, 4, nil), clock)
	f.engine = NewEngine(matrix.NewResolver(matrix.Default(), clock), f.loader, DefaultConfig())
	return f
}

func goalIn(id int64, months int, target float64) domain.Goal {
	return domain.Goal{
		ID:          id,
		ClientID:    1,
		Name:        "goal",
		Type:        domain.GoalTypeGeneral,
		TargetValue: target,
		StartDate:   testNow.AddDate(-1, 0, 0),
		TargetDate:  testNow.AddDate(0, months, 0),
	}
}

func uniform(p float64) domain.ClassVector {
	return domain.ClassVector{p, p, p, p}
}

func assertVector(t *testing.T, expected, actual domain.ClassVector) {
	t.Helper()
	for _, c := range domain.AllRiskClasses {
		assert.InDelta(t, expected[c], actual[c], 1e-6, "class %s", c)
	}
}

func TestEngine_SingleGoalContribution(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 200000))
	f.slices.SetSlice(1, 1, uniform(100))
	f.totals[1] = domain.ClassVector{10000, 20000, 5000, 2000}

	res, err := f.engine.Process(1, []domain.Movement{{GoalID: 1, Amount: 10000}})
	require.NoError(t, err)
	require.Len(t, res.Goals, 1)

	g := res.Goals[0]
	assert.Equal(t, 36, g.MatrixHorizon)
	assertVector(t, domain.ClassVector{360, 6840, 2128, 672}, g.DistributedMovement)
	assert.InDelta(t, 47000, g.NewTotal, 1e-6)
	assertVector(t, domain.ClassVector{1692, 32148, 10001.6, 3158.4}, g.TargetState)
	assertVector(t, domain.ClassVector{-8668, 5308, 2873.6, 486.4}, g.Gap)
	assertVector(t, uniform(100), g.NewPercent)
	assertVector(t, g.TargetState, res.PoolAfterRedistribution)
	assertVector(t, domain.ClassVector{}, res.UnassignedCapital)

	actions := make([]Action, 0, len(res.Instructions))
	for _, inst := range res.Instructions {
		actions = append(actions, inst.Action)
	}
	assert.Equal(t, []Action{ActionSell, ActionBuy, ActionBuy, ActionBuy}, actions)

	net := make([]Action, 0, len(res.NetInstructions))
	for _, inst := range res.NetInstructions {
		net = append(net, inst.Action)
	}
	assert.Equal(t, []Action{ActionSell, ActionBuy, ActionBuy, ActionBuy}, net)
	assert.NotEmpty(t, res.SnapshotVersion)
}

func TestEngine_PercentSumsStayAtHundred(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 12, 50000), goalIn(2, 60, 300000), goalIn(3, 130, 900000))
	f.slices.SetSlice(1, 1, domain.ClassVector{50, 20, 10, 0})
	f.slices.SetSlice(1, 2, domain.ClassVector{30, 50, 40, 30})
	f.slices.SetSlice(1, 3, domain.ClassVector{20, 30, 50, 70})
	f.totals[1] = domain.ClassVector{20000, 60000, 30000, 15000}

	res, err := f.engine.Process(1, []domain.Movement{
		{GoalID: 1, Amount: 5000},
		{GoalID: 2, Amount: -12000},
		{GoalID: 3, Amount: 40000},
	})
	require.NoError(t, err)

	assertVector(t, uniform(100), res.NewPercentSums())
	assert.InDelta(t, 33000, res.TotalMovement, 1e-6)
	assert.InDelta(t, res.TotalMovement, res.MovementByClass.Total(), 1e-6)
	assertVector(t, domain.ClassVector{}, res.UnassignedCapital)

	for _, g := range res.Goals {
		assert.InDelta(t, g.Movement, g.DistributedMovement.Total(), 1e-6)
		assert.InDelta(t, g.NewTotal, g.TargetState.Total(), 1e-6)
	}
}

func TestEngine_ZeroMovementOnTargetIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000), goalIn(2, 36, 100000))
	f.slices.SetSlice(1, 1, uniform(50))
	f.slices.SetSlice(1, 2, uniform(50))

	row, err := matrix.Default().Lookup(domain.GoalTypeGeneral, 36)
	require.NoError(t, err)
	f.totals[1] = row.Allocation().Scale(1000)

	res, err := f.engine.Process(1, nil)
	require.NoError(t, err)

	for _, g := range res.Goals {
		assertVector(t, uniform(50), g.NewPercent)
		assertVector(t, domain.ClassVector{}, g.Gap)
	}
	for _, inst := range res.Instructions {
		assert.Equal(t, ActionRedistribute, inst.Action)
	}
	assert.Zero(t, res.TotalMovement)
}

func TestEngine_WithdrawalCeiling(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000), goalIn(2, 48, 100000))
	f.slices.SetSlice(1, 1, uniform(40))
	f.slices.SetSlice(1, 2, uniform(60))
	f.totals[1] = domain.ClassVector{1000, 2000, 3000, 4000}

	// goal 1 owns 40% of 10000
	_, err := f.engine.Process(1, []domain.Movement{{GoalID: 1, Amount: -4000.01}})
	var funds *domain.InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, int64(1), funds.GoalID)
	assert.InDelta(t, 4000, funds.Available, 1e-9)

	res, err := f.engine.Process(1, []domain.Movement{{GoalID: 1, Amount: -4000}})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Goal(1).NewTotal, 1e-6)
	assertVector(t, domain.ClassVector{}, res.Goal(1).NewPercent)
}

func TestEngine_RejectsInvalidMovements(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000))
	f.slices.SetSlice(1, 1, uniform(100))
	f.totals[1] = uniform(1000)

	tests := []struct {
		name      string
		movements []domain.Movement
		field     string
	}{
		{"foreign goal", []domain.Movement{{GoalID: 99, Amount: 10}}, "goal_id"},
		{"nan amount", []domain.Movement{{GoalID: 1, Amount: math.NaN()}}, "amount"},
		{"infinite amount", []domain.Movement{{GoalID: 1, Amount: math.Inf(1)}}, "amount"},
		{"duplicate goal", []domain.Movement{{GoalID: 1, Amount: 10}, {GoalID: 1, Amount: 20}}, "goal_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Process(1, tt.movements)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEngine_SnapsHorizonToLadder(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 130, 100000), goalIn(2, 13, 100000))
	f.slices.SetSlice(1, 1, uniform(50))
	f.slices.SetSlice(1, 2, uniform(50))
	f.totals[1] = uniform(1000)

	res, err := f.engine.Process(1, nil)
	require.NoError(t, err)

	assert.Equal(t, 130, res.Goal(1).HorizonMonths)
	assert.Equal(t, 132, res.Goal(1).MatrixHorizon)
	assert.Equal(t, 13, res.Goal(2).HorizonMonths)
	assert.Equal(t, 12, res.Goal(2).MatrixHorizon)
}

func TestEngine_GoalWithoutSliceStartsEmpty(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000), goalIn(2, 36, 100000))
	f.slices.SetSlice(1, 1, uniform(100))
	f.totals[1] = uniform(1000)

	res, err := f.engine.Process(1, []domain.Movement{{GoalID: 2, Amount: 1000}})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Goal(2).CurrentTotal, 1e-9)
	assert.InDelta(t, 1000, res.Goal(2).NewTotal, 1e-6)
	assertVector(t, uniform(100), res.NewPercentSums())
}

func TestEngine_UnownedPoolIsGuarded(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 12, 50000), goalIn(2, 132, 50000))
	f.totals[1] = domain.ClassVector{10000, 0, 0, 0}

	for _, cascade := range []bool{false, true} {
		var res *Result
		var err error
		if cascade {
			res, err = f.engine.ProcessWithCascade(1, nil)
		} else {
			res, err = f.engine.Process(1, nil)
		}
		require.NoError(t, err)
		require.Len(t, res.Goals, 2)

		for _, g := range res.Goals {
			for _, c := range domain.AllRiskClasses {
				assert.False(t, math.IsNaN(g.NewPercent[c]), "goal %d class %s", g.GoalID, c)
				assert.Zero(t, g.NewPercent[c], "goal %d class %s", g.GoalID, c)
			}
		}
		assertVector(t, domain.ClassVector{10000, 0, 0, 0}, res.UnassignedCapital)
		assertVector(t, domain.ClassVector{}, res.GapByClass)
		assert.False(t, res.CascadeApplied)
	}
}

func TestEngine_ZeroPoolAndZeroGoals(t *testing.T) {
	t.Run("no goals", func(t *testing.T) {
		f := newEngineFixture(t)
		f.totals[1] = domain.ClassVector{5000, 0, 2500, 0}

		res, err := f.engine.Process(1, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Goals)
		assert.Zero(t, res.TotalMovement)
		assertVector(t, domain.ClassVector{5000, 0, 2500, 0}, res.UnassignedCapital)

		res, err = f.engine.ProcessWithCascade(1, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Goals)
		assert.Empty(t, res.Transfers)
		assert.False(t, res.CascadeApplied)
	})

	t.Run("empty pool", func(t *testing.T) {
		f := newEngineFixture(t)
		f.goals.SetGoals(goalIn(1, 36, 100000), goalIn(2, 72, 100000))
		f.slices.SetSlice(1, 1, uniform(50))
		f.slices.SetSlice(1, 2, uniform(50))

		res, err := f.engine.Process(1, nil)
		require.NoError(t, err)
		for _, g := range res.Goals {
			assertVector(t, domain.ClassVector{}, g.NewPercent)
			assert.Zero(t, g.NewTotal)
		}
		assertVector(t, domain.ClassVector{}, res.PoolAfterRedistribution)
		for _, inst := range res.Instructions {
			assert.Equal(t, ActionRedistribute, inst.Action)
		}
	})
}

func TestEngine_InflationModeWithoutProviderIsConfigurationError(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000))
	f.totals[1] = uniform(1000)

	clock := func() time.Time { return testNow }
	loader := NewSnapshotLoader(f.totals, f.goals, f.slices, NewEstimator(PVModeInflation, 4, nil), clock)
	engine := NewEngine(matrix.NewResolver(matrix.Default(), clock), loader, DefaultConfig())

	_, err := engine.Process(1, nil)
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestEngine_ComputeIsPure(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000), goalIn(2, 72, 100000))
	f.slices.SetSlice(1, 1, uniform(30))
	f.slices.SetSlice(1, 2, uniform(70))
	f.totals[1] = domain.ClassVector{5000, 5000, 5000, 5000}

	snap, err := f.loader.Load(1)
	require.NoError(t, err)
	movements := []domain.Movement{{GoalID: 2, Amount: 2500}}

	first, err := f.engine.Compute(snap, movements)
	require.NoError(t, err)
	second, err := f.engine.Compute(snap, movements)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, uniform(30), snap.Slices[1].Percent)
}

func TestSnapshot_VersionTracksState(t *testing.T) {
	f := newEngineFixture(t)
	f.goals.SetGoals(goalIn(1, 36, 100000))
	f.slices.SetSlice(1, 1, uniform(100))
	f.totals[1] = uniform(1000)

	a, err := f.loader.Load(1)
	require.NoError(t, err)
	b, err := f.loader.Load(1)
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version())

	f.slices.SetSlice(1, 1, domain.ClassVector{90, 100, 100, 100})
	c, err := f.loader.Load(1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Version(), c.Version())

	f.totals[1] = uniform(2000)
	d, err := f.loader.Load(1)
	require.NoError(t, err)
	assert.NotEqual(t, c.Version(), d.Version())
}
