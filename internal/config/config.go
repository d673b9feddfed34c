// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Feed adapter identifiers. The concrete market data source is selected at
// startup by configuration, not by subclassing.
const (
	FeedAdapterMock         = "mock"
	FeedAdapterFIXWebSocket = "fix-websocket"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Market data feed
	FeedAdapter string // "mock" or "fix-websocket"
	FeedURL     string // upstream URL for the fix-websocket adapter

	// Notification delivery; empty means log-only delivery
	NotifyWebhookURL string

	// Recording cadence
	SnapshotIntervalSeconds int // holding snapshot recording interval
	TrendIntervalMinutes    int // trend rollup interval

	// Bounded store capacities
	MaxSnapshots    int
	MaxBreachEvents int
	MaxAuditEntries int
	MaxTrendPoints  int

	// Durable mirror
	MirrorQueueSize int // pending write capacity before drop+log

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible cloud backup configuration.
// Backups are disabled when no bucket is configured.
type BackupConfig struct {
	Enabled       bool
	Endpoint      string // S3-compatible endpoint URL (empty = AWS default)
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, resolve to absolute path, ensure it exists
	dataDir := getEnv("VIGIL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("VIGIL_PORT", 8002),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FeedAdapter: getEnv("FEED_ADAPTER", FeedAdapterMock),
		FeedURL:     getEnv("FEED_URL", ""),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		SnapshotIntervalSeconds: getEnvAsInt("SNAPSHOT_INTERVAL_SECONDS", 30),
		TrendIntervalMinutes:    getEnvAsInt("TREND_INTERVAL_MINUTES", 5),

		MaxSnapshots:    getEnvAsInt("MAX_SNAPSHOTS", 10000),
		MaxBreachEvents: getEnvAsInt("MAX_BREACH_EVENTS", 5000),
		MaxAuditEntries: getEnvAsInt("MAX_AUDIT_ENTRIES", 5000),
		MaxTrendPoints:  getEnvAsInt("MAX_TREND_POINTS", 2880),

		MirrorQueueSize: getEnvAsInt("MIRROR_QUEUE_SIZE", 4096),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	switch c.FeedAdapter {
	case FeedAdapterMock:
		// No upstream required
	case FeedAdapterFIXWebSocket:
		if c.FeedURL == "" {
			return fmt.Errorf("FEED_URL is required for the %s adapter", FeedAdapterFIXWebSocket)
		}
	default:
		return fmt.Errorf("unknown feed adapter %q", c.FeedAdapter)
	}

	if c.SnapshotIntervalSeconds <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL_SECONDS must be positive")
	}
	if c.TrendIntervalMinutes <= 0 {
		return fmt.Errorf("TREND_INTERVAL_MINUTES must be positive")
	}
	if c.MaxSnapshots <= 0 || c.MaxBreachEvents <= 0 || c.MaxAuditEntries <= 0 || c.MaxTrendPoints <= 0 {
		return fmt.Errorf("store capacities must be positive")
	}

	return nil
}

// loadBackupConfig loads cloud backup configuration.
// Backups are enabled only when a bucket is configured.
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	return &BackupConfig{
		Enabled:       bucket != "",
		Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:        getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:        bucket,
		AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
