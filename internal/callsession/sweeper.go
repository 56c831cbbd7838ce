package callsession

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts sessions from a MemStore once they have been
// ended for longer than the retention TTL. It is plain background
// maintenance: no read or write path triggers it, and it never touches a
// session that has not ended. Redis-backed stores do not need a Sweeper;
// key TTLs already handle retention there.
type Sweeper struct {
	store    *MemStore
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper creates a Sweeper that removes sessions ended more than ttl
// ago, checking every interval.
func NewSweeper(store *MemStore, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, ttl: ttl, interval: interval}
}

// Run sweeps until ctx is cancelled, then returns nil. Call it from its
// own goroutine, typically under an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.store.SweepExpired(s.ttl); removed > 0 {
				slog.Debug("callsession: swept expired sessions", "removed", removed, "ttl", s.ttl)
			}
		}
	}
}
