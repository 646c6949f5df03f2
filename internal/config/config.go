// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/geld/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for all databases, always absolute
	LogLevel   string
	DBDriver   string // "sqlite" (modernc, default) or "sqlite3" (mattn)
	Port       int
	LogPretty  bool
	DevMode    bool
	Engine     EngineConfig
	Scheduler  SchedulerConfig
	Backup     BackupConfig
	API        APIConfig
	StagedTTL  time.Duration
	MatrixFile string // optional YAML override of the target matrices
}

// EngineConfig holds the rebalance and slice tunables
type EngineConfig struct {
	PVMode                string
	RealAnnualRate        float64
	GapTolerance          float64
	SurplusTolerance      float64
	SliceTolerance        float64
	ManualSliceTolerance  float64
	FallbackInflationRate float64
}

// SchedulerConfig holds cron expressions (with seconds) for background jobs
type SchedulerConfig struct {
	DriftCheckSchedule string
	CleanupSchedule    string
	CheckpointSchedule string
	BackupSchedule     string
}

// BackupConfig holds S3 compatible backup settings. Backups are disabled
// when Bucket is empty.
type BackupConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether a backup destination is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// APIConfig holds HTTP surface settings
type APIConfig struct {
	CORSOrigins []string
	Rate        float64 // requests per second per client address
	Burst       int
}

// Load reads configuration from a .env file, if present, and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("GELD_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("GELD_PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		DBDriver:  getEnv("GELD_DB_DRIVER", "sqlite"),
		Engine: EngineConfig{
			PVMode:                getEnv("GELD_PV_MODE", "real"),
			RealAnnualRate:        getEnvAsFloat("GELD_REAL_ANNUAL_RATE", 3.5),
			GapTolerance:          getEnvAsFloat("GELD_GAP_TOLERANCE", 100),
			SurplusTolerance:      getEnvAsFloat("GELD_SURPLUS_TOLERANCE", 100),
			SliceTolerance:        getEnvAsFloat("GELD_SLICE_TOLERANCE", 1.0),
			ManualSliceTolerance:  getEnvAsFloat("GELD_MANUAL_SLICE_TOLERANCE", 0.01),
			FallbackInflationRate: getEnvAsFloat("GELD_FALLBACK_INFLATION", 4.5),
		},
		Scheduler: SchedulerConfig{
			DriftCheckSchedule: getEnv("GELD_DRIFT_CHECK_SCHEDULE", "0 */15 * * * *"),
			CleanupSchedule:    getEnv("GELD_CLEANUP_SCHEDULE", "0 */5 * * * *"),
			CheckpointSchedule: getEnv("GELD_CHECKPOINT_SCHEDULE", "0 0 * * * *"),
			BackupSchedule:     getEnv("GELD_BACKUP_SCHEDULE", "0 30 3 * * *"),
		},
		Backup: BackupConfig{
			Bucket:    getEnv("GELD_BACKUP_BUCKET", ""),
			Endpoint:  getEnv("GELD_BACKUP_ENDPOINT", ""),
			Region:    getEnv("GELD_BACKUP_REGION", "us-east-1"),
			AccessKey: getEnv("GELD_BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("GELD_BACKUP_SECRET_KEY", ""),
			Prefix:    strings.Trim(getEnv("GELD_BACKUP_PREFIX", "backups"), "/"),
		},
		API: APIConfig{
			CORSOrigins: utils.ParseCSV(getEnv("GELD_CORS_ORIGINS", "*")),
			Rate:        getEnvAsFloat("GELD_API_RATE", 20),
			Burst:       getEnvAsInt("GELD_API_BURST", 40),
		},
		StagedTTL:  getEnvAsDuration("GELD_STAGED_TTL", 30*time.Minute),
		MatrixFile: getEnv("GELD_MATRIX_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.DBDriver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	switch strings.ToLower(c.Engine.PVMode) {
	case "real", "inflation":
	default:
		return fmt.Errorf("unknown present value mode %q", c.Engine.PVMode)
	}
	if c.Engine.GapTolerance < 0 || c.Engine.SurplusTolerance < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if c.Engine.SliceTolerance < 0 || c.Engine.ManualSliceTolerance < 0 {
		return fmt.Errorf("slice tolerances must not be negative")
	}
	if c.StagedTTL <= 0 {
		return fmt.Errorf("staged result ttl must be positive, got %s", c.StagedTTL)
	}
	if c.API.Rate <= 0 || c.API.Burst <= 0 {
		return fmt.Errorf("api rate and burst must be positive")
	}
	if c.Backup.Enabled() && (c.Backup.AccessKey == "") != (c.Backup.SecretKey == "") {
		return fmt.Errorf("backup access key and secret key must be set together")
	}
	return nil
}

// AdvisoryDBPath is the location of the advisory database
func (c *Config) AdvisoryDBPath() string {
	return filepath.Join(c.DataDir, "advisory.db")
}

// CacheDBPath is the location of the cache database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
