package store

import (
	"context"
	"log/slog"
	"time"
)

// cleanupWorkerInterval is how often the cleanup worker scans for
// expired sessions.
const cleanupWorkerInterval = 5 * time.Minute

// StartCleanupWorker runs a background goroutine that periodically
// removes sessions idle longer than ttl. It stops when ctx is cancelled.
func StartCleanupWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(cleanupWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session cleanup worker started", "interval", cleanupWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupExpiredSessions(ctx, ttl)
				if err != nil {
					slog.Error("Cleanup worker failed to remove expired sessions", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("Cleanup worker removed expired sessions", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("Session cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
