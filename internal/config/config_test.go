package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	SetDefaults()

	cfg := Load()

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "./cache.db", cfg.CacheDBFile)
	assert.Equal(t, 168*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, 500, cfg.SessionLimit)
	assert.Equal(t, 100, cfg.BatchLimit)
	assert.Equal(t, 5, cfg.LookupConcurrency)
	assert.Equal(t, 4, cfg.BundleConcurrency)
	assert.Equal(t, RateLimit{Requests: 10, Window: time.Minute}, cfg.RequestLimit)

	for _, name := range sourceNames {
		rl, ok := cfg.RateLimits[name]
		require.True(t, ok, "source %s should have a rate limit", name)
		assert.Equal(t, 60, rl.Requests)
		assert.Equal(t, time.Minute, rl.Window)
	}
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)
	SetDefaults()

	viper.Set("server.port", 9000)
	viper.Set("session.ttl", "1h")
	viper.Set("ratelimit.googlebooks.requests", 120)

	cfg := Load()

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 120, cfg.RateLimits["googlebooks"].Requests)
}

func TestDurationFallsBackOnGarbage(t *testing.T) {
	resetViper(t)
	viper.Set("cache.ttl", "not-a-duration")

	assert.Equal(t, 168*time.Hour, duration("cache.ttl", 168*time.Hour))
}

func TestBindEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("ISBNDB_API_KEY", "env-isbndb")
	t.Setenv("GOOGLE_BOOKS_API_KEY", "env-google")

	require.NoError(t, BindEnv())
	cfg := Load()

	assert.Equal(t, "env-isbndb", cfg.ISBNdbAPIKey)
	assert.Equal(t, "env-google", cfg.GoogleBooksAPIKey)
}
