package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/handoff-chat/internal/store"
)

// StartTTLWorker runs a background goroutine that periodically drops idle
// conversations from the registry. When repo is non-nil, anonymous users idle
// for longer than ttl are removed as well; their ledger entries are kept.
func StartTTLWorker(ctx context.Context, registry *Registry, repo store.Repository, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, registry, repo, ttl)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(ctx context.Context, registry *Registry, repo store.Repository, ttl time.Duration) {
	if removed := registry.Sweep(ttl); removed > 0 {
		slog.Info("TTL worker dropped idle conversations", "count", removed, "remaining", registry.Len())
	}

	if repo == nil {
		return
	}
	deleted, err := repo.DeleteIdleUsers(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("TTL worker failed to delete idle users", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker deleted idle users", "count", deleted)
	}
}
