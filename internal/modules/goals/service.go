package goals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/pkg/formulas"
)

// GoalContribution is the monthly deposit one goal needs to reach its target
type GoalContribution struct {
	Name                string  `json:"name"`
	GoalID              int64   `json:"goal_id"`
	TargetValue         float64 `json:"target_value"`
	CurrentValue        float64 `json:"current_value"`
	HorizonMonths       int     `json:"horizon_months"`
	MonthlyContribution float64 `json:"monthly_contribution"`
}

// ContributionPlan aggregates the required contributions of a client's goals
type ContributionPlan struct {
	Goals              []GoalContribution `json:"goals"`
	ClientID           int64              `json:"client_id"`
	AnnualInflationPct float64            `json:"annual_inflation_percent"`
	RealAnnualPct      float64            `json:"real_annual_percent"`
	TotalMonthly       float64            `json:"total_monthly"`
}

// Service manages the goal lifecycle. Deleting a goal hands its slice to
// the client's remaining goals under the same lock used by rebalancing.
type Service struct {
	db          *sql.DB
	repo        *Repository
	slices      domain.SliceStore
	maintenance *allocation.Maintenance
	projector   *allocation.Projector
	totals      allocation.ClassTotaler
	inflation   domain.InflationProvider
	locks       *locks.ClientLocks
	events      *events.Manager
	realRate    float64
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a new goal service. eventManager may be nil.
func NewService(
	db *sql.DB,
	repo *Repository,
	slices domain.SliceStore,
	maintenance *allocation.Maintenance,
	totals allocation.ClassTotaler,
	inflation domain.InflationProvider,
	clientLocks *locks.ClientLocks,
	eventManager *events.Manager,
	realAnnualPercent float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		slices:      slices,
		maintenance: maintenance,
		projector:   allocation.NewProjector(repo, slices),
		totals:      totals,
		inflation:   inflation,
		locks:       clientLocks,
		events:      eventManager,
		realRate:    realAnnualPercent,
		now:         time.Now,
		log:         log.With().Str("service", "goals").Logger(),
	}
}

// Create validates and stores a new goal
func (s *Service) Create(g domain.Goal) (*domain.Goal, error) {
	if g.StartDate.IsZero() {
		g.StartDate = s.now().UTC().Truncate(24 * time.Hour)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireClient(g.ClientID); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(g)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.events.EmitTyped("goals", &events.GoalCreatedData{
		GoalType:    string(created.Type),
		GoalID:      created.ID,
		ClientID:    created.ClientID,
		TargetValue: created.TargetValue,
	})
	return created, nil
}

// Update overwrites a goal's mutable fields. The owning client cannot change.
func (s *Service) Update(g domain.Goal) (*domain.Goal, error) {
	existing, err := s.repo.GetByID(g.ID)
	if err != nil {
		return nil, err
	}

	g.ClientID = existing.ClientID
	if g.StartDate.IsZero() {
		g.StartDate = existing.StartDate
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(g.ClientID)
	defer unlock()

	if err := s.repo.Update(g); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(g.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("goal_id", g.ID).Int64("client_id", g.ClientID).Msg("Goal updated")
	s.events.EmitTyped("goals", &events.GoalUpdatedData{GoalID: g.ID, ClientID: g.ClientID})
	return updated, nil
}

// Get returns one goal
func (s *Service) Get(goalID int64) (*domain.Goal, error) {
	return s.repo.GetByID(goalID)
}

// List returns the client's goals
func (s *Service) List(clientID int64) ([]domain.Goal, error) {
	if err := s.requireClient(clientID); err != nil {
		return nil, err
	}
	goals, err := s.repo.ListByClient(clientID)
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []domain.Goal{}
	}
	return goals, nil
}

// Delete removes a goal. Its slice is redistributed to the surviving goals,
// then the slice and goal rows are removed, all in one transaction.
func (s *Service) Delete(goalID int64) error {
	goal, err := s.repo.GetByID(goalID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(goal.ClientID)
	defer unlock()

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if err := s.maintenance.RedistributeAfterDeletionTx(tx, goal.ClientID, goalID); err != nil {
			return err
		}
		if err := s.slices.DeleteTx(tx, goalID); err != nil {
			return err
		}
		return s.repo.DeleteTx(tx, goalID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete goal %d: %w", goalID, err)
	}

	s.log.Info().Int64("goal_id", goalID).Int64("client_id", goal.ClientID).Msg("Goal deleted")
	s.events.EmitTyped("goals", &events.GoalDeletedData{GoalID: goalID, ClientID: goal.ClientID})
	return nil
}

// ContributionPlan computes the monthly deposit each goal needs, using the
// goal's currently allocated value as its present value.
func (s *Service) ContributionPlan(clientID int64) (*ContributionPlan, error) {
	if err := s.requireClient(clientID); err != nil {
		return nil, err
	}

	inflation, err := s.inflation.LatestAnnualInflation()
	if err != nil {
		return nil, fmt.Errorf("failed to read inflation: %w", err)
	}
	totals, err := s.totals.ClassTotals(clientID)
	if err != nil {
		return nil, err
	}
	goals, err := s.repo.ListByClient(clientID)
	if err != nil {
		return nil, err
	}
	allocs, err := s.projector.CurrentAllocations(clientID, totals)
	if err != nil {
		return nil, err
	}

	now := s.now()
	plan := &ContributionPlan{
		Goals:              make([]GoalContribution, 0, len(goals)),
		ClientID:           clientID,
		AnnualInflationPct: inflation,
		RealAnnualPct:      s.realRate,
	}
	for _, g := range goals {
		current := allocs[g.ID].Total
		months := g.HorizonMonths(now)
		pmt := formulas.RequiredMonthlyContribution(current, g.TargetValue, months, inflation, s.realRate)

		plan.Goals = append(plan.Goals, GoalContribution{
			Name:                g.Name,
			GoalID:              g.ID,
			TargetValue:         g.TargetValue,
			CurrentValue:        current,
			HorizonMonths:       months,
			MonthlyContribution: pmt,
		})
		plan.TotalMonthly += pmt
	}
	return plan, nil
}

func (s *Service) requireClient(clientID int64) error {
	ok, err := s.repo.ClientExists(clientID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("client %d: %w", clientID, domain.ErrNotFound)
	}
	return nil
}
