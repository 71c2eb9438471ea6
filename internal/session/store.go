package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/cataloger/internal/book"
)

const (
	// DefaultTTL is how long a session stays retrievable after creation.
	DefaultTTL = 30 * time.Minute
	// DefaultLimit caps the number of live sessions to bound memory.
	DefaultLimit = 500
)

var (
	// ErrSessionNotFound is returned for unknown and expired session ids alike.
	ErrSessionNotFound = errors.New("session not found or expired")

	// ErrStoreFull is returned when the store is at its session cap.
	ErrStoreFull = errors.New("session store is full")
)

// Store owns all Session objects. It is written once per batch and read
// many times afterward; sessions are never mutated after creation.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	limit    int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a session store. Zero ttl or limit select the defaults.
func NewStore(ttl time.Duration, limit int, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		limit:    limit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a fresh session holding the batch's results.
// Returns ErrStoreFull when the store is at its cap even after evicting
// expired sessions.
func (s *Store) Create(location string, books []book.Record) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	if len(s.sessions) >= s.limit {
		return nil, ErrStoreFull
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Location:  location,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Books:     books,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns the session if present and not expired. An expired but not
// yet swept session behaves identically to an unknown id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if isExpired(sess, s.now()) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts all expired sessions and returns how many were removed.
// Skipping the sweep never produces wrong results, only delayed reclamation.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if isExpired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
