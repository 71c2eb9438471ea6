package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/cataloger/internal/testutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(testutil.NewTestEnv(t).Path("cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestSetAndGet(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Set("googlebooks_cache", "9780134190440", `{"title":"test"}`, DefaultTTL))

	data, found, err := db.Get("googlebooks_cache", "9780134190440")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"title":"test"}`, data)
}

func TestGetMissing(t *testing.T) {
	db := newTestDB(t)

	_, found, err := db.Get("googlebooks_cache", "0000000000000")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetExpired(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Set("openlibrary_cache", "9780134190440", "{}", time.Minute))

	// Entry is live now, expired from an hour in the future.
	_, found, err := db.Get("openlibrary_cache", "9780134190440")
	require.NoError(t, err)
	assert.True(t, found)

	db.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, found, err = db.Get("openlibrary_cache", "9780134190440")
	require.NoError(t, err)
	assert.False(t, found, "entry past its TTL should be treated as absent")
}

func TestSetReplacesEntry(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Set("isbndb_cache", "key", "old", DefaultTTL))
	require.NoError(t, db.Set("isbndb_cache", "key", "new", DefaultTTL))

	data, found, err := db.Get("isbndb_cache", "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", data)
}

func TestInvalidTableName(t *testing.T) {
	db := newTestDB(t)

	err := db.Set("evil_table; DROP TABLE users", "key", "data", DefaultTTL)
	assert.Error(t, err)

	_, _, err = db.Get("unknown_cache", "key")
	assert.Error(t, err)

	_, err = db.InvalidateSource("unknown_cache")
	assert.Error(t, err)
}

func TestInvalidateSource(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Set("bookcover_cache", "111", "a", DefaultTTL))
	require.NoError(t, db.Set("bookcover_cache", "222", "b", DefaultTTL))

	deleted, err := db.InvalidateSource("bookcover_cache")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, found, err := db.Get("bookcover_cache", "111")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearExpired(t *testing.T) {
	db := newTestDB(t)

	// Zero TTL is immediately expired for the SQL-side sweep.
	require.NoError(t, db.Set("olcovers_cache", "old", "a", 0))
	require.NoError(t, db.Set("olcovers_cache", "fresh", "b", DefaultTTL))

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, db.ClearExpired("olcovers_cache"))

	_, found, err := db.Get("olcovers_cache", "fresh")
	require.NoError(t, err)
	assert.True(t, found, "live entry should survive the sweep")
}

func TestTablesCreatedOnOpen(t *testing.T) {
	db := newTestDB(t)

	for table := range ValidTableNames {
		_, _, err := db.Get(table, "probe")
		assert.NoError(t, err, "table %s should exist", table)
	}
}
