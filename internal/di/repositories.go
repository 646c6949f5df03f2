package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/indicators"
	"github.com/aristath/geld/internal/modules/portfolio"
	"github.com/aristath/geld/internal/modules/rebalancing"
)

// InitializeRepositories creates every repository over the opened databases
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) {
	advisory := container.AdvisoryDB.Conn()

	container.PositionRepo = portfolio.NewPositionRepository(advisory, log)
	container.GoalRepo = goals.NewRepository(advisory, log)
	container.SliceRepo = allocation.NewRepository(advisory, log)
	container.IndicatorRepo = indicators.NewRepository(advisory, cfg.Engine.FallbackInflationRate, log)
	container.StagedRepo = rebalancing.NewStagedRepository(container.CacheDB.Conn(), log)
}
