package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/reliability"
	"github.com/aristath/geld/internal/scheduler"
)

// backupTimeout bounds a single scheduled backup
const backupTimeout = 10 * time.Minute

// JobInstances holds the background jobs so they can also be triggered manually
type JobInstances struct {
	DriftCheck    *scheduler.DriftCheckJob
	StagedCleanup *scheduler.StagedCleanupJob
	WALCheckpoint *scheduler.WALCheckpointJob
	Backup        *reliability.BackupJob // nil when backups are disabled
}

// RegisterJobs creates the jobs and registers them with the scheduler
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		DriftCheck: scheduler.NewDriftCheckJob(
			container.GoalRepo,
			container.Maintenance,
			container.EventManager,
			container.Metrics,
			log,
		),
		StagedCleanup: scheduler.NewStagedCleanupJob(container.RebalancingService, container.EventManager, log),
		WALCheckpoint: scheduler.NewWALCheckpointJob(map[string]*database.DB{
			"advisory": container.AdvisoryDB,
			"cache":    container.CacheDB,
		}, "TRUNCATE", log),
	}

	if err := sched.AddJob(cfg.Scheduler.DriftCheckSchedule, jobs.DriftCheck); err != nil {
		return nil, fmt.Errorf("failed to register drift check job: %w", err)
	}
	if err := sched.AddJob(cfg.Scheduler.CleanupSchedule, jobs.StagedCleanup); err != nil {
		return nil, fmt.Errorf("failed to register staged cleanup job: %w", err)
	}
	if err := sched.AddJob(cfg.Scheduler.CheckpointSchedule, jobs.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, backupTimeout)
		if err := sched.AddJob(cfg.Scheduler.BackupSchedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	return jobs, nil
}
