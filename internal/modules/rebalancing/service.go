package rebalancing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/metrics"
	"github.com/aristath/geld/internal/utils"
)

const (
	modeProcess = "process"
	modeCascade = "cascade"
)

// Service serializes rebalancing per client and persists applied results
type Service struct {
	db      *sql.DB
	engine  *Engine
	loader  *SnapshotLoader
	slices  domain.SliceStore
	staged  *StagedRepository
	locks   *locks.ClientLocks
	events  *events.Manager
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a new rebalancing service. events and metrics may be nil.
func NewService(
	db *sql.DB,
	engine *Engine,
	loader *SnapshotLoader,
	slices domain.SliceStore,
	staged *StagedRepository,
	clientLocks *locks.ClientLocks,
	eventManager *events.Manager,
	m *metrics.Metrics,
	stagedTTL time.Duration,
	log zerolog.Logger,
) *Service {
	if stagedTTL <= 0 {
		stagedTTL = DefaultStagedTTL
	}
	return &Service{
		db:      db,
		engine:  engine,
		loader:  loader,
		slices:  slices,
		staged:  staged,
		locks:   clientLocks,
		events:  eventManager,
		metrics: m,
		ttl:     stagedTTL,
		now:     time.Now,
		log:     log.With().Str("service", "rebalancing").Logger(),
	}
}

// Process computes a result without persisting anything
func (s *Service) Process(clientID int64, movements []domain.Movement, cascade bool) (*Result, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	return s.run(clientID, movements, cascade)
}

// Preview computes a result and stages it for a later apply
func (s *Service) Preview(clientID int64, movements []domain.Movement, cascade bool) (*StagedResult, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	result, err := s.run(clientID, movements, cascade)
	if err != nil {
		return nil, err
	}

	staged, err := s.staged.Store(result, s.ttl)
	if err != nil {
		return nil, err
	}

	pending, err := s.staged.CountByClient(clientID)
	if err != nil {
		s.log.Warn().Err(err).Int64("client_id", clientID).Msg("Failed to count staged results")
	}

	s.log.Info().
		Int64("client_id", clientID).
		Str("staged_id", staged.ID).
		Int("pending", pending).
		Time("expires_at", staged.ExpiresAt).
		Msg("Rebalance staged")

	s.events.EmitTyped("rebalancing", &events.RebalanceStagedData{
		ExpiresAt:      staged.ExpiresAt,
		StagedID:       staged.ID,
		ClientID:       clientID,
		Pending:        pending,
		TotalMovement:  result.TotalMovement,
		CascadeApplied: result.CascadeApplied,
	})

	return staged, nil
}

// Rebalance computes and applies in one step under a single client lock
func (s *Service) Rebalance(clientID int64, movements []domain.Movement, cascade bool) (*Result, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	result, err := s.run(clientID, movements, cascade)
	if err != nil {
		return nil, err
	}
	if err := s.persist(result, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// Apply persists a result computed earlier. The result is rejected when the
// client's goals, slices or holdings changed since it was computed.
func (s *Service) Apply(result *Result) error {
	unlock := s.locks.Lock(result.ClientID)
	defer unlock()

	return s.applyChecked(result, "")
}

// GetStaged returns an unexpired staged result
func (s *Service) GetStaged(id string) (*StagedResult, error) {
	return s.staged.Get(id)
}

// ApplyStaged applies a staged result and removes it
func (s *Service) ApplyStaged(id string) (*Result, error) {
	staged, err := s.staged.Get(id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(staged.ClientID)
	defer unlock()

	if err := s.applyChecked(staged.Result, staged.ID); err != nil {
		return nil, err
	}

	if err := s.staged.Delete(staged.ID); err != nil {
		s.log.Warn().Err(err).Str("staged_id", staged.ID).Msg("Applied staged result could not be removed")
	}
	return staged.Result, nil
}

// DiscardStaged removes a staged result without applying it
func (s *Service) DiscardStaged(id string) error {
	staged, err := s.staged.Get(id)
	if err != nil {
		return err
	}
	if err := s.staged.Delete(id); err != nil {
		return err
	}

	s.log.Info().Str("staged_id", id).Int64("client_id", staged.ClientID).Msg("Staged rebalance discarded")
	s.events.EmitTyped("rebalancing", &events.StagedDiscardedData{StagedID: id, ClientID: staged.ClientID})
	return nil
}

// CleanupExpired removes expired staged results
func (s *Service) CleanupExpired() (int64, error) {
	n, err := s.staged.DeleteExpired()
	if err != nil {
		return 0, err
	}
	s.metrics.AddStagedCleaned(n)
	return n, nil
}

func (s *Service) run(clientID int64, movements []domain.Movement, cascade bool) (*Result, error) {
	mode := modeProcess
	if cascade {
		mode = modeCascade
	}

	stop := utils.OperationTimer("rebalance_"+mode, s.log)
	var result *Result
	var err error
	if cascade {
		result, err = s.engine.ProcessWithCascade(clientID, movements)
	} else {
		result, err = s.engine.Process(clientID, movements)
	}

	transfers := 0
	if result != nil {
		transfers = len(result.Transfers)
	}
	s.metrics.ObserveRebalance(mode, stop(), transfers, err)

	if err != nil {
		s.log.Warn().Err(err).Int64("client_id", clientID).Str("mode", mode).Msg("Rebalance failed")
		return nil, err
	}

	s.log.Info().
		Int64("client_id", clientID).
		Str("mode", mode).
		Int("goals", len(result.Goals)).
		Float64("total_movement", result.TotalMovement).
		Int("transfers", transfers).
		Msg("Rebalance computed")

	return result, nil
}

// applyChecked must be called with the client lock held
func (s *Service) applyChecked(result *Result, stagedID string) error {
	snap, err := s.loader.Load(result.ClientID)
	if err != nil {
		return err
	}
	if snap.Version() != result.SnapshotVersion {
		return &domain.ValidationError{
			Field:   "snapshot_version",
			Message: "goals, slices or holdings changed since the result was computed; run it again",
		}
	}
	return s.persist(result, stagedID)
}

// persist writes every goal's new percentages with one timestamp, all or nothing
func (s *Service) persist(result *Result, stagedID string) error {
	now := s.now()
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, g := range result.Goals {
			slice := domain.OwnershipSlice{GoalID: g.GoalID, Percent: g.NewPercent, UpdatedAt: now}
			if err := s.slices.UpsertTx(tx, slice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply rebalance for client %d: %w", result.ClientID, err)
	}

	s.metrics.IncSlicesApplied()
	s.log.Info().
		Int64("client_id", result.ClientID).
		Int("goals", len(result.Goals)).
		Str("staged_id", stagedID).
		Msg("Rebalance applied")

	s.events.EmitTyped("rebalancing", &events.SlicesAppliedData{
		StagedID:       stagedID,
		ClientID:       result.ClientID,
		Goals:          len(result.Goals),
		Iterations:     result.Iterations,
		TotalMovement:  result.TotalMovement,
		CascadeApplied: result.CascadeApplied,
	})
	return nil
}
