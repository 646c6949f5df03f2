package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/events"
)

// StagedCleaner removes expired staged rebalance results
type StagedCleaner interface {
	CleanupExpired() (int64, error)
}

// StagedCleanupJob removes expired staged results from the cache database
type StagedCleanupJob struct {
	cleaner StagedCleaner
	events  *events.Manager
	log     zerolog.Logger
}

// NewStagedCleanupJob creates the cleanup job
func NewStagedCleanupJob(cleaner StagedCleaner, eventManager *events.Manager, log zerolog.Logger) *StagedCleanupJob {
	return &StagedCleanupJob{
		cleaner: cleaner,
		events:  eventManager,
		log:     log.With().Str("job", "staged_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *StagedCleanupJob) Name() string {
	return "staged_cleanup"
}

// Run removes every expired staged result
func (j *StagedCleanupJob) Run() error {
	removed, err := j.cleaner.CleanupExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired staged results")
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Cleaned up expired staged results")
		j.events.EmitTyped("scheduler", &events.StagedResultsCleanedData{Removed: removed})
	}
	return nil
}
