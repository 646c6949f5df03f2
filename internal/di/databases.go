package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// advisory.db - clients, holdings, goals, ownership slices, indicators
	advisoryDB, err := database.New(database.Config{
		Path:    cfg.AdvisoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "advisory",
		Driver:  cfg.DBDriver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize advisory database: %w", err)
	}
	container.AdvisoryDB = advisoryDB

	// cache.db - staged rebalance results, safe to lose
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
		Driver:  cfg.DBDriver,
	})
	if err != nil {
		advisoryDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{advisoryDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("advisory", filepath.Base(advisoryDB.Path())).
		Str("cache", filepath.Base(cacheDB.Path())).
		Str("driver", cfg.DBDriver).
		Msg("Databases initialized")

	return container, nil
}
