package db

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes items whose storage-level expiry has passed.
// Readers still check expiry themselves; the sweeper only reclaims space.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval, now: time.Now}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep runs one pass and returns how many items were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	removed, err := s.store.DeleteExpired(ctx, s.now().Unix())
	if err != nil {
		slog.Error("sweeper: failed to delete expired items", "error", err)
		return 0
	}
	if removed > 0 {
		slog.Info("sweeper: deleted expired items", "count", removed)
	}
	return removed
}
