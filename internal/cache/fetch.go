package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// GetOrFetch retrieves data from the cache or fetches it using the provided
// function, storing the result with the store's configured default TTL.
// T is the type of data being cached.
// tableName is the cache table to use (e.g., "googlebooks_cache").
// cacheKey is the unique identifier for this cache entry (e.g., the ISBN).
// A nil db degrades to a direct fetch so a broken cache never blocks lookups.
func GetOrFetch[T any](db *DB, tableName, cacheKey string, fetchFunc FetchFunc[T]) (T, bool, error) {
	return getOrFetch(db, tableName, cacheKey, fetchFunc, nil)
}

// GetOrFetchWithTTL retrieves data from the cache or fetches it, with a
// per-result TTL. The ttlSelector is called after fetching to determine
// which TTL to store the entry with; this is how "not found" responses get
// cached with a shorter lifetime than successful ones.
func GetOrFetchWithTTL[T any](db *DB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	return getOrFetch(db, tableName, cacheKey, fetchFunc, ttlSelector)
}

// SelectNegativeTTL returns a standard TTL selector for negative caching.
// Use this to cache "not found" responses with a shorter TTL (NegativeTTL)
// than successful responses, so misses are not hammered on every batch but
// do get retried eventually. Successful responses select zero, which means
// the store's configured default TTL applies.
//
// The isNotFound function should return true if the result represents a
// "not found" response.
func SelectNegativeTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return NegativeTTL
		}
		return 0
	}
}

// flightResult carries a fetched or cached value through the singleflight
// group, which erases the generic type.
type flightResult struct {
	raw    any
	cached bool
}

func getOrFetch[T any](db *DB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if db == nil {
		// Cache unavailable - degrade to direct fetch, never block the pipeline.
		slog.Warn("Cache unavailable, fetching directly", "table", tableName, "key", cacheKey)
		data, fetchErr := fetchFunc()
		return data, false, fetchErr
	}

	// Single-flight per (table, key): concurrent lookups for the same entry
	// share one underlying fetch instead of racing to the network.
	v, err, _ := db.flight.Do(tableName+"\x00"+cacheKey, func() (any, error) {
		cached, found, err := db.Get(tableName, cacheKey)
		if err == nil && found {
			var result T
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
				return flightResult{raw: result, cached: true}, nil
			}
			slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
		}

		slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
		data, err := fetchFunc()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch data: %w", err)
		}

		ttl := db.defaultTTL
		if ttlSelector != nil {
			if selected := ttlSelector(data); selected > 0 {
				ttl = selected
			}
		}

		jsonData, err := json.Marshal(data)
		if err != nil {
			slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		} else {
			if err := db.Set(tableName, cacheKey, string(jsonData), ttl); err != nil {
				// Log but don't fail - a caching failure shouldn't stop the lookup.
				slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
			} else {
				slog.Debug("Data cached", "table", tableName, "key", cacheKey, "ttl", ttl)
			}
		}

		return flightResult{raw: data, cached: false}, nil
	})
	if err != nil {
		return zero, false, err
	}

	res := v.(flightResult)
	return res.raw.(T), res.cached, nil
}
