package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/metrics"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/matrix"
	"github.com/aristath/geld/internal/modules/portfolio"
	"github.com/aristath/geld/internal/modules/rebalancing"
	"github.com/aristath/geld/internal/reliability"
)

// breakerCooldown is how long backup uploads stay suspended after the breaker opens
const breakerCooldown = 30 * time.Minute

// InitializeServices builds the infrastructure and the domain services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Infrastructure
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = metrics.New()
	container.ClientLocks = locks.NewClientLocks()

	// Reference data. An invalid override file stops startup.
	table, err := matrix.Load(cfg.MatrixFile)
	if err != nil {
		return fmt.Errorf("failed to load target matrices: %w", err)
	}
	container.MatrixTable = table
	container.Resolver = matrix.NewResolver(table, nil)

	pvMode, err := rebalancing.ParsePVMode(cfg.Engine.PVMode)
	if err != nil {
		return err
	}
	container.Estimator = rebalancing.NewEstimator(pvMode, cfg.Engine.RealAnnualRate, container.IndicatorRepo)

	// Allocation
	container.Aggregator = portfolio.NewAggregator(container.PositionRepo)
	container.Projector = allocation.NewProjector(container.GoalRepo, container.SliceRepo)
	container.Maintenance = allocation.NewMaintenance(
		container.AdvisoryDB.Conn(),
		container.GoalRepo,
		container.SliceRepo,
		container.Aggregator,
		container.ClientLocks,
		allocation.MaintenanceConfig{
			SliceTolerance:  cfg.Engine.SliceTolerance,
			ManualTolerance: cfg.Engine.ManualSliceTolerance,
		},
		log,
	)

	// Rebalancing
	loader := rebalancing.NewSnapshotLoader(container.Aggregator, container.GoalRepo, container.SliceRepo, container.Estimator, nil)
	container.Engine = rebalancing.NewEngine(container.Resolver, loader, rebalancing.Config{
		GapTolerance:     cfg.Engine.GapTolerance,
		SurplusTolerance: cfg.Engine.SurplusTolerance,
	})
	container.RebalancingService = rebalancing.NewService(
		container.AdvisoryDB.Conn(),
		container.Engine,
		loader,
		container.SliceRepo,
		container.StagedRepo,
		container.ClientLocks,
		container.EventManager,
		container.Metrics,
		cfg.StagedTTL,
		log,
	)

	// Goals
	container.GoalService = goals.NewService(
		container.AdvisoryDB.Conn(),
		container.GoalRepo,
		container.SliceRepo,
		container.Maintenance,
		container.Aggregator,
		container.IndicatorRepo,
		container.ClientLocks,
		container.EventManager,
		cfg.Engine.RealAnnualRate,
		log,
	)

	if cfg.Backup.Enabled() {
		if err := initializeBackups(container, cfg, log); err != nil {
			return err
		}
	}

	log.Info().Str("pv_mode", string(pvMode)).Msg("Services initialized")
	return nil
}

func initializeBackups(container *Container, cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s3, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
		Bucket:    cfg.Backup.Bucket,
		Endpoint:  cfg.Backup.Endpoint,
		Region:    cfg.Backup.Region,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize backup uploader: %w", err)
	}

	tmpDir := filepath.Join(cfg.DataDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup temp directory: %w", err)
	}

	container.BackupService = reliability.NewBackupService(
		container.AdvisoryDB,
		reliability.NewBreakerUploader(s3, breakerCooldown, log),
		cfg.Backup.Prefix,
		tmpDir,
		container.EventManager,
		container.Metrics,
		log,
	)
	log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	return nil
}
