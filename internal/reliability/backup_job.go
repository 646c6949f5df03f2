package reliability

import (
	"context"
	"time"
)

// BackupJob runs the backup service on a schedule
type BackupJob struct {
	service *BackupService
	timeout time.Duration
}

// NewBackupJob creates a backup job. Each run is bounded by timeout.
func NewBackupJob(service *BackupService, timeout time.Duration) *BackupJob {
	return &BackupJob{service: service, timeout: timeout}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run executes one backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.service.Run(ctx)
	return err
}
