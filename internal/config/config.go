// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Quote providers
const (
	ProviderHTTP   = "http"
	ProviderStatic = "static"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	LogLevel string
	Port     int
	DevMode  bool

	QuoteProvider  string // "http" or "static"
	MarketDataURL  string
	StaticQuotes   string // TICKER=PRICE[:CURRENCY],... for the static provider
	QuoteTimeout   time.Duration
	QuoteCacheTTL  time.Duration
	StatsCacheTTL  time.Duration
	StalePolicy    valuation.FallbackPolicy
	DefaultHistory int // days

	QuoteRefreshSchedule string
	CacheCleanupSchedule string
	MaintenanceSchedule  string

	SnapshotEnabled bool
	SnapshotKeep    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCKFOLIO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		QuoteProvider:  getEnv("QUOTE_PROVIDER", ProviderHTTP),
		MarketDataURL:  getEnv("MARKET_DATA_URL", "http://localhost:8000"),
		StaticQuotes:   getEnv("STATIC_QUOTES", ""),
		QuoteTimeout:   getEnvAsSeconds("QUOTE_TIMEOUT_SECONDS", 10*time.Second),
		QuoteCacheTTL:  getEnvAsSeconds("QUOTE_CACHE_TTL_SECONDS", 10*time.Minute),
		StatsCacheTTL:  getEnvAsSeconds("STATS_CACHE_TTL_SECONDS", 30*time.Second),
		StalePolicy:    valuation.FallbackPolicy(getEnv("STALE_QUOTE_POLICY", string(valuation.FallbackCostBasis))),
		DefaultHistory: getEnvAsInt("HISTORY_DEFAULT_DAYS", 30),

		QuoteRefreshSchedule: getEnv("QUOTE_REFRESH_SCHEDULE", "@every 1m"),
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@daily"),
		MaintenanceSchedule:  getEnv("DB_MAINTENANCE_SCHEDULE", "@hourly"),

		SnapshotEnabled: getEnvAsBool("SNAPSHOT_ENABLED", true),
		SnapshotKeep:    getEnvAsInt("SNAPSHOT_KEEP", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}

	switch c.QuoteProvider {
	case ProviderHTTP:
		if c.MarketDataURL == "" {
			return fmt.Errorf("MARKET_DATA_URL is required for the http quote provider")
		}
	case ProviderStatic:
	default:
		return fmt.Errorf("unknown QUOTE_PROVIDER %q (must be http or static)", c.QuoteProvider)
	}

	if _, err := valuation.ParseFallbackPolicy(string(c.StalePolicy)); err != nil {
		return err
	}

	for name, d := range map[string]time.Duration{
		"QUOTE_TIMEOUT_SECONDS":   c.QuoteTimeout,
		"QUOTE_CACHE_TTL_SECONDS": c.QuoteCacheTTL,
		"STATS_CACHE_TTL_SECONDS": c.StatsCacheTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.DefaultHistory <= 0 || c.DefaultHistory > 3650 {
		return fmt.Errorf("HISTORY_DEFAULT_DAYS must be between 1 and 3650")
	}
	if c.SnapshotKeep <= 0 {
		return fmt.Errorf("SNAPSHOT_KEEP must be positive")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"QUOTE_REFRESH_SCHEDULE":  c.QuoteRefreshSchedule,
		"CACHE_CLEANUP_SCHEDULE":  c.CacheCleanupSchedule,
		"DB_MAINTENANCE_SCHEDULE": c.MaintenanceSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	return nil
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

// getEnvAsSeconds reads a whole number of seconds. A set but unparsable value
// yields 0 so Validate rejects it.
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}
