package scheduler

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/database"
)

// walWarnFrames is the log size past which a checkpoint that could not
// drain the WAL is reported.
const walWarnFrames = 1000

// WALCheckpointJob checkpoints the WAL of every registered database
type WALCheckpointJob struct {
	databases map[string]*database.DB
	mode      string
	log       zerolog.Logger
}

// NewWALCheckpointJob creates the checkpoint job. mode is a SQLite checkpoint
// mode; empty means TRUNCATE.
func NewWALCheckpointJob(databases map[string]*database.DB, mode string, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		mode:      mode,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints each database. One failing database does not stop the rest.
func (j *WALCheckpointJob) Run() error {
	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	checked := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}

		remaining, err := db.WALCheckpoint(j.mode)
		if err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Failed to checkpoint WAL")
			failed = append(failed, name)
			continue
		}

		if remaining > walWarnFrames {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", remaining).
				Msg("WAL still large after checkpoint")
		} else {
			j.log.Debug().Str("database", name).Int("wal_frames", remaining).Msg("WAL checkpoint OK")
		}
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("WAL checkpoint completed")

	if len(failed) > 0 {
		return fmt.Errorf("WAL checkpoint failed for %v", failed)
	}
	return nil
}
