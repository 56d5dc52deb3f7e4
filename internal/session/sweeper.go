package session

import (
	"context"
	"time"

	"github.com/ashureev/logoforge/internal/store"
)

// SweepConfig controls the background sweeper.
type SweepConfig struct {
	Interval  time.Duration
	IdleTTL   time.Duration
	Retention time.Duration
}

// StartSweeper runs a background goroutine that periodically stops idle
// actors and removes persisted sessions older than the retention window.
// The returned channel is closed once the goroutine exits after ctx is done.
func StartSweeper(ctx context.Context, s *Store, repo store.Repository, cfg SweepConfig) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		s.logger.Info("Session sweeper started",
			"interval", cfg.Interval, "idle_ttl", cfg.IdleTTL, "retention", cfg.Retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, s, repo, cfg)
			case <-ctx.Done():
				s.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, s *Store, repo store.Repository, cfg SweepConfig) {
	if evicted := s.Evict(cfg.IdleTTL); evicted > 0 {
		s.logger.Info("Session sweeper evicted idle actors", "count", evicted, "active", s.ActiveSessions())
	}

	if cfg.Retention <= 0 {
		return
	}
	// Actors caching a row about to be purged are stopped first, and again
	// afterwards in case one reloaded the row mid-purge.
	cutoff := s.now().Add(-cfg.Retention)
	stale := s.evictStale(cutoff)
	deleted, err := repo.CleanupExpiredStates(ctx, cfg.Retention)
	stale += s.evictStale(cutoff)
	if err != nil {
		s.logger.Error("Session sweeper failed to remove expired states", "error", err)
		return
	}
	if deleted > 0 || stale > 0 {
		s.logger.Info("Session sweeper removed expired states", "count", deleted, "evicted", stale)
	}
}
