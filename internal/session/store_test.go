package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/cataloger/internal/book"
)

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testBooks() []book.Record {
	return []book.Record{
		{Identifier: "111", Title: "Found Book", ImageURL: "https://example.com/cover.jpg"},
		{Identifier: "222", Errors: []string{"not found"}},
	}
}

func TestCreateAndGet(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, 10, WithClock(clock.Now))

	sess, err := store.Create("Main Store", testBooks())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "Main Store", sess.Location)
	assert.Equal(t, clock.Now().Add(30*time.Minute), sess.ExpiresAt)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Books, 2)
}

func TestGetUnknownID(t *testing.T) {
	store := NewStore(0, 0)

	_, err := store.Get("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetExpiredSession(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, 10, WithClock(clock.Now))

	sess, err := store.Create("Main Store", testBooks())
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	_, err = store.Get(sess.ID)
	require.NoError(t, err, "session should still be live just inside the TTL")

	clock.Advance(time.Minute)
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "an expired session behaves like an unknown id")
	assert.Equal(t, 0, store.Len(), "expired session is evicted on access")
}

func TestCreateStoreFull(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, 2, WithClock(clock.Now))

	_, err := store.Create("A", nil)
	require.NoError(t, err)
	_, err = store.Create("B", nil)
	require.NoError(t, err)

	_, err = store.Create("C", nil)
	assert.ErrorIs(t, err, ErrStoreFull)

	// Once the earlier sessions expire, the cap frees up again.
	clock.Advance(31 * time.Minute)
	_, err = store.Create("C", nil)
	assert.NoError(t, err, "creation sweeps expired sessions before checking the cap")
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(30*time.Minute, 10, WithClock(clock.Now))

	_, err := store.Create("A", nil)
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = store.Create("B", nil)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	removed := store.Sweep()
	assert.Equal(t, 1, removed, "only the first session is past its TTL")
	assert.Equal(t, 1, store.Len())
}

func TestSessionIDsAreUnique(t *testing.T) {
	store := NewStore(0, 0)

	seen := make(map[string]bool)
	for range 50 {
		sess, err := store.Create("loc", nil)
		require.NoError(t, err)
		assert.False(t, seen[sess.ID])
		seen[sess.ID] = true
	}
}

func TestSummary(t *testing.T) {
	sess := &Session{Books: testBooks()}

	sum := sess.Summary()
	assert.Equal(t, Summary{Total: 2, Found: 1, Missing: 1, Images: 1}, sum)
}

func TestSummaryEmpty(t *testing.T) {
	sess := &Session{}
	assert.Equal(t, Summary{}, sess.Summary())
}
