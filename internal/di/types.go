/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the CLI for access to services.
 */
package di

import (
	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/metrics"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/indicators"
	"github.com/aristath/geld/internal/modules/matrix"
	"github.com/aristath/geld/internal/modules/portfolio"
	"github.com/aristath/geld/internal/modules/rebalancing"
	"github.com/aristath/geld/internal/reliability"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: advisory (clients, holdings, goals, slices, indicators) and cache (staged results)
 * - Repositories: data access layer
 * - Services: goal lifecycle, slice maintenance, rebalancing
 * - Infrastructure: event bus, metrics, per-client locks, optional backups
 */
type Container struct {
	// Databases
	AdvisoryDB *database.DB
	CacheDB    *database.DB

	// Repositories
	PositionRepo  *portfolio.PositionRepository
	GoalRepo      *goals.Repository
	SliceRepo     *allocation.Repository
	IndicatorRepo *indicators.Repository
	StagedRepo    *rebalancing.StagedRepository

	// Infrastructure
	EventBus     *events.Bus
	EventManager *events.Manager
	Metrics      *metrics.Metrics
	ClientLocks  *locks.ClientLocks

	// Services
	Aggregator         *portfolio.Aggregator
	Projector          *allocation.Projector
	Maintenance        *allocation.Maintenance
	MatrixTable        *matrix.Table
	Resolver           *matrix.Resolver
	Estimator          *rebalancing.Estimator
	Engine             *rebalancing.Engine
	RebalancingService *rebalancing.Service
	GoalService        *goals.Service

	// BackupService is nil when no backup bucket is configured
	BackupService *reliability.BackupService
}

// Close closes both databases
func (c *Container) Close() {
	if c.AdvisoryDB != nil {
		_ = c.AdvisoryDB.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
}
