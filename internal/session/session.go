// Package session provides an ephemeral, TTL-bounded store for completed
// batch lookup results. Sessions are created once, read many times, and
// reclaimed by a background sweep or lazily on access after expiry.
package session

import (
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
)

// Session holds one completed batch's results, addressed by an
// unguessable id. Read-only after creation.
type Session struct {
	ID        string
	Location  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Books     []book.Record
}

// Summary holds the derived result counts for a session.
type Summary struct {
	Total   int `json:"total"`
	Found   int `json:"found"`
	Missing int `json:"missing"`
	Images  int `json:"images"`
}

// Summary derives the result counts; they are never stored independently.
func (s *Session) Summary() Summary {
	sum := Summary{Total: len(s.Books)}
	for i := range s.Books {
		if s.Books[i].Found() {
			sum.Found++
		}
		if s.Books[i].ImageURL != "" {
			sum.Images++
		}
	}
	sum.Missing = sum.Total - sum.Found
	return sum
}

// isExpired reports whether the session is past its TTL at the given time.
// Pure function so expiry logic is testable without real delays.
func isExpired(s *Session, now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
