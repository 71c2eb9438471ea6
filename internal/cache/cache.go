// Package cache provides a durable SQLite-backed response cache for
// external source lookups. Entries are keyed per source table and carry
// their own TTL; expired entries are treated as absent and refreshed on
// the next access.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

const (
	// DefaultTTL is the default time-to-live for cached entries (7 days)
	DefaultTTL = 168 * time.Hour
	// NegativeTTL is the TTL for "not found" responses (24 hours)
	NegativeTTL = 24 * time.Hour
)

// DB manages the SQLite database connection for caching.
// It is constructed once at process start and injected into every source
// client; a nil *DB degrades all lookups to direct fetches.
type DB struct {
	db         *sql.DB
	mu         sync.RWMutex
	path       string
	flight     singleflight.Group
	now        func() time.Time
	defaultTTL time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithDefaultTTL sets the TTL stored with entries whose fetch did not
// select one itself. Non-positive values keep DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *DB) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// New creates a DB instance, opens the database connection and
// initializes all cache tables.
func New(dbPath string, opts ...Option) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	c := &DB{
		db:         db,
		path:       dbPath,
		now:        time.Now,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, schema := range AllSchemas {
		if err := c.CreateTable(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
		}
	}

	return c, nil
}

// CreateTable creates a table using the provided schema.
func (c *DB) CreateTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *DB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (c *DB) Path() string {
	return c.path
}

// Get retrieves a cached value from the specified table.
// Returns the cached data, whether a live entry was found, and any error.
// An entry past its stored TTL is treated as absent, never served stale.
func (c *DB) Get(tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, cached_at, ttl_seconds
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var cachedAt time.Time
	var ttlSeconds int64
	err := c.db.QueryRow(query, key).Scan(&data, &cachedAt, &ttlSeconds)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	age := c.now().UTC().Sub(cachedAt)
	if age > time.Duration(ttlSeconds)*time.Second {
		slog.Debug("Cache expired", "table", tableName, "key", key, "age", age)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in the cache with the given TTL, replacing any
// existing entry for the key in place.
func (c *DB) Set(tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at, ttl_seconds)
		VALUES (?, ?, CURRENT_TIMESTAMP, ?)
	`, tableName)

	_, err := c.db.Exec(query, key, data, int64(ttl/time.Second))
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// InvalidateSource deletes all entries from the specified cache table.
// Returns the number of rows deleted.
func (c *DB) InvalidateSource(tableName string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s", tableName)
	result, err := c.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// ClearExpired removes entries past their TTL from the specified table.
func (c *DB) ClearExpired(tableName string) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE strftime('%%s', 'now') - strftime('%%s', cached_at) > ttl_seconds
	`, tableName)

	result, err := c.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to clear expired cache: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", rows)
	}

	return nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks.
func validateTableName(tableName string) error {
	if !ValidTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}
