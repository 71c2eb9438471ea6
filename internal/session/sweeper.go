package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically evicts expired sessions from a Store.
// Separately schedulable from the store itself so expiry logic stays
// verifiable without timers.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins background sweeps. Calling Start twice is a no-op.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.mu.Lock()
	if sw.running || sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.running = true
	sw.mu.Unlock()

	go sw.run(ctx)
}

// Stop halts background sweeps and waits for the loop to exit.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	if !sw.running || sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.stopped = true
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh
}

func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.doneCh)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := sw.store.Sweep(); removed > 0 {
				sw.logger.Debug("Swept expired sessions", "removed", removed)
			}
		case <-sw.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
