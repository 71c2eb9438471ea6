// Package config loads the service configuration from viper (config.yaml
// plus environment variables) into an explicit Config value that gets
// passed to the components, rather than read ambiently at use sites.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// RateLimit describes one source's request budget per rolling window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Config holds the assembled service configuration.
type Config struct {
	ServerPort int

	CacheDBFile string
	CacheTTL    time.Duration

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SessionLimit         int

	BatchLimit        int
	LookupConcurrency int
	BundleConcurrency int

	ISBNdbAPIKey      string
	GoogleBooksAPIKey string

	// RateLimits maps source name to its request budget.
	RateLimits map[string]RateLimit

	// RequestLimit throttles POST /lookup per client IP.
	RequestLimit RateLimit
}

// sourceNames are the external sources with configurable rate limits.
var sourceNames = []string{"googlebooks", "openlibrary", "isbndb", "bookcover"}

// SetDefaults installs the default configuration values into viper.
func SetDefaults() {
	viper.SetDefault("server.port", 8000)

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "168h")

	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.sweep_interval", "5m")
	viper.SetDefault("session.limit", 500)

	viper.SetDefault("lookup.batch_limit", 100)
	viper.SetDefault("lookup.concurrency", 5)
	viper.SetDefault("bundle.concurrency", 4)

	// Public API etiquette: roughly one request per second per source.
	for _, name := range sourceNames {
		viper.SetDefault(fmt.Sprintf("ratelimit.%s.requests", name), 60)
		viper.SetDefault(fmt.Sprintf("ratelimit.%s.window", name), "1m")
	}

	// Per-IP budget for POST /lookup.
	viper.SetDefault("ratelimit.request.requests", 10)
	viper.SetDefault("ratelimit.request.window", "1m")
}

// BindEnv wires environment variables to config keys.
func BindEnv() error {
	viper.AutomaticEnv()
	if err := viper.BindEnv("isbndb.api_key", "ISBNDB_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind ISBNDB_API_KEY: %w", err)
	}
	if err := viper.BindEnv("googlebooks.api_key", "GOOGLE_BOOKS_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind GOOGLE_BOOKS_API_KEY: %w", err)
	}
	return nil
}

// Load assembles the Config from viper's current state.
func Load() *Config {
	cfg := &Config{
		ServerPort:           viper.GetInt("server.port"),
		CacheDBFile:          viper.GetString("cache.dbfile"),
		CacheTTL:             duration("cache.ttl", 168*time.Hour),
		SessionTTL:           duration("session.ttl", 30*time.Minute),
		SessionSweepInterval: duration("session.sweep_interval", 5*time.Minute),
		SessionLimit:         viper.GetInt("session.limit"),
		BatchLimit:           viper.GetInt("lookup.batch_limit"),
		LookupConcurrency:    viper.GetInt("lookup.concurrency"),
		BundleConcurrency:    viper.GetInt("bundle.concurrency"),
		ISBNdbAPIKey:         viper.GetString("isbndb.api_key"),
		GoogleBooksAPIKey:    viper.GetString("googlebooks.api_key"),
		RateLimits:           make(map[string]RateLimit, len(sourceNames)),
	}

	for _, name := range sourceNames {
		cfg.RateLimits[name] = RateLimit{
			Requests: viper.GetInt(fmt.Sprintf("ratelimit.%s.requests", name)),
			Window:   duration(fmt.Sprintf("ratelimit.%s.window", name), time.Minute),
		}
	}
	cfg.RequestLimit = RateLimit{
		Requests: viper.GetInt("ratelimit.request.requests"),
		Window:   duration("ratelimit.request.window", time.Minute),
	}

	return cfg
}

// duration parses a viper duration value, falling back with a warning on
// malformed input rather than failing startup.
func duration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration in config, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}
