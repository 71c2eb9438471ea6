package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Registry holds one limiter per external source. It is constructed at
// process start from configuration and shared by every in-flight lookup,
// so the budget per source is global rather than per-identifier.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Add registers a limiter for the named source, replacing any existing one.
func (r *Registry) Add(name string, requests int, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = New(name, requests, window)
}

// Get returns the limiter for the named source, or nil if none is configured.
func (r *Registry) Get(name string) *Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// Acquire blocks until the named source's limiter allows a request.
// Sources without a configured limiter proceed immediately.
func (r *Registry) Acquire(ctx context.Context, name string) error {
	l := r.Get(name)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
