package cache

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/spf13/viper"
)

// InvalidateCmd represents the cache invalidate subcommand
type InvalidateCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: googlebooks, openlibrary, isbndb, bookcover, olcovers" required:""`
}

func (i *InvalidateCmd) Run() error {
	dbPath := viper.GetString("cache.dbfile")

	slog.Info("Invalidating cache", "source", i.Source, "database", dbPath)

	tableName := i.Source + "_cache"
	if !ValidTableNames[tableName] {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: googlebooks, openlibrary, isbndb, bookcover, olcovers", i.Source)
	}

	db, err := New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = db.Close() }()

	rowsDeleted, err := db.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

// ClearExpiredCmd represents the cache clear-expired subcommand. It
// reclaims rows past their TTL from every cache table; expired rows are
// already invisible to reads, this just frees the space.
type ClearExpiredCmd struct{}

func (c *ClearExpiredCmd) Run() error {
	dbPath := viper.GetString("cache.dbfile")

	slog.Info("Clearing expired cache entries", "database", dbPath)

	db, err := New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = db.Close() }()

	for _, table := range slices.Sorted(maps.Keys(ValidTableNames)) {
		if err := db.ClearExpired(table); err != nil {
			return fmt.Errorf("failed to clear expired entries from %s: %w", table, err)
		}
	}

	return nil
}
