package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GELD_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "real", cfg.Engine.PVMode)
	assert.Equal(t, 3.5, cfg.Engine.RealAnnualRate)
	assert.Equal(t, 100.0, cfg.Engine.GapTolerance)
	assert.Equal(t, 100.0, cfg.Engine.SurplusTolerance)
	assert.Equal(t, 1.0, cfg.Engine.SliceTolerance)
	assert.Equal(t, 0.01, cfg.Engine.ManualSliceTolerance)
	assert.Equal(t, 4.5, cfg.Engine.FallbackInflationRate)
	assert.Equal(t, 30*time.Minute, cfg.StagedTTL)
	assert.Equal(t, []string{"*"}, cfg.API.CORSOrigins)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, filepath.Join(dir, "advisory.db"), cfg.AdvisoryDBPath())
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.CacheDBPath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GELD_DATA_DIR", t.TempDir())
	t.Setenv("GELD_PORT", "9090")
	t.Setenv("GELD_DB_DRIVER", "sqlite3")
	t.Setenv("GELD_PV_MODE", "inflation")
	t.Setenv("GELD_REAL_ANNUAL_RATE", "5.25")
	t.Setenv("GELD_STAGED_TTL", "10m")
	t.Setenv("GELD_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GELD_BACKUP_BUCKET", "geld-backups")
	t.Setenv("GELD_BACKUP_PREFIX", "/nightly/")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("GELD_API_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "inflation", cfg.Engine.PVMode)
	assert.Equal(t, 5.25, cfg.Engine.RealAnnualRate)
	assert.Equal(t, 10*time.Minute, cfg.StagedTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "nightly", cfg.Backup.Prefix)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 40, cfg.API.Burst)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:      8080,
			DBDriver:  "sqlite",
			Engine:    EngineConfig{PVMode: "real", GapTolerance: 100, SurplusTolerance: 100, SliceTolerance: 1},
			StagedTTL: time.Minute,
			API:       APIConfig{Rate: 1, Burst: 1},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"driver", func(c *Config) { c.DBDriver = "postgres" }},
		{"pv mode", func(c *Config) { c.Engine.PVMode = "nominal" }},
		{"negative tolerance", func(c *Config) { c.Engine.GapTolerance = -1 }},
		{"ttl", func(c *Config) { c.StagedTTL = 0 }},
		{"rate", func(c *Config) { c.API.Rate = 0 }},
		{"half credentials", func(c *Config) { c.Backup = BackupConfig{Bucket: "b", AccessKey: "k"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
