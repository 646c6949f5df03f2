// Package reliability snapshots the advisory database and ships the
// snapshot to object storage.
package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/metrics"
)

// BackupResult describes one uploaded snapshot
type BackupResult struct {
	Key      string        `json:"key"`
	Checksum string        `json:"sha256"`
	Database string        `json:"database"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// BackupService writes a VACUUM INTO snapshot, gzips it and uploads it
type BackupService struct {
	db       *database.DB
	uploader Uploader
	prefix   string
	tmpDir   string
	events   *events.Manager
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger
}

// NewBackupService creates a new backup service. tmpDir holds the snapshot
// while it is compressed; events and metrics may be nil.
func NewBackupService(
	db *database.DB,
	uploader Uploader,
	prefix string,
	tmpDir string,
	eventManager *events.Manager,
	m *metrics.Metrics,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		db:       db,
		uploader: uploader,
		prefix:   prefix,
		tmpDir:   tmpDir,
		events:   eventManager,
		metrics:  m,
		now:      time.Now,
		log:      log.With().Str("service", "backup").Logger(),
	}
}

// ObjectKey names a snapshot: prefix/geld-<timestamp>-<uuid>.db.gz
func ObjectKey(prefix string, at time.Time) string {
	name := fmt.Sprintf("geld-%s-%s.db.gz", at.UTC().Format("20060102T150405Z"), uuid.NewString())
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Run creates and uploads one snapshot
func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	result, err := s.run(ctx)
	s.metrics.ObserveBackup(err)
	if err != nil {
		s.log.Error().Err(err).Str("database", s.db.Name()).Msg("Backup failed")
		return nil, err
	}

	s.log.Info().
		Str("key", result.Key).
		Str("sha256", result.Checksum).
		Int64("bytes", result.Bytes).
		Dur("duration", result.Duration).
		Msg("Backup uploaded")

	s.events.EmitTyped("reliability", &events.BackupCompletedData{
		Key:      result.Key,
		Checksum: result.Checksum,
		Database: result.Database,
		Bytes:    result.Bytes,
	})
	return result, nil
}

func (s *BackupService) run(ctx context.Context) (*BackupResult, error) {
	start := time.Now()

	workDir, err := os.MkdirTemp(s.tmpDir, "geld-backup-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create backup work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	snapshot := filepath.Join(workDir, s.db.Name()+".db")
	if err := s.db.SnapshotTo(snapshot); err != nil {
		return nil, err
	}

	archive := snapshot + ".gz"
	checksum, size, err := compress(snapshot, archive)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := ObjectKey(s.prefix, s.now())
	if err := s.uploader.Upload(ctx, key, f); err != nil {
		return nil, err
	}

	return &BackupResult{
		Key:      key,
		Checksum: checksum,
		Database: s.db.Name(),
		Bytes:    size,
		Duration: time.Since(start),
	}, nil
}

// compress gzips src into dst and returns the sha256 and size of dst
func compress(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	hash := sha256.New()
	counter := &countingWriter{}
	gz := gzip.NewWriter(io.MultiWriter(out, hash, counter))

	if _, err := io.Copy(gz, in); err != nil {
		return "", 0, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		return "", 0, fmt.Errorf("failed to sync archive: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), counter.n, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
