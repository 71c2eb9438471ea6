// Package errors defines typed errors shared by the external source clients.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError reports that an upstream API rejected a request for
// exceeding its quota. The request is not retried; the identifier's
// waterfall moves on to the next source and the cache keeps the miss
// from being replayed immediately.
type RateLimitError struct {
	Source     string
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// NewRateLimitError creates a RateLimitError for the given source.
func NewRateLimitError(source, message string) *RateLimitError {
	return &RateLimitError{Source: source, Message: message}
}

// NewRateLimitErrorWithRetry creates a RateLimitError carrying the
// upstream's Retry-After hint.
func NewRateLimitErrorWithRetry(source, message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, Message: message, RetryAfter: retryAfter}
}

// IsRateLimitError reports whether err is or wraps a RateLimitError.
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
