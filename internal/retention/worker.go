// Package retention prunes persisted chat history past its retention window.
package retention

import (
	"context"
	"log/slog"
	"time"
)

const sweepTimeout = 30 * time.Second

// HistoryPruner deletes chat history older than a retention window.
type HistoryPruner interface {
	CleanupChatHistory(ctx context.Context, retention time.Duration) (int64, error)
}

// StartWorker runs a background goroutine that sweeps expired chat history
// every interval until ctx is done. The returned channel closes when the
// goroutine exits.
func StartWorker(ctx context.Context, repo HistoryPruner, retention, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		logger.Info("Retention worker started", "interval", interval, "retention", retention)

		Sweep(ctx, repo, retention, logger)
		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, retention, logger)
			case <-ctx.Done():
				logger.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep runs one pruning pass and returns the number of deleted rows.
func Sweep(ctx context.Context, repo HistoryPruner, retention time.Duration, logger *slog.Logger) int64 {
	if logger == nil {
		logger = slog.Default()
	}
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	deleted, err := repo.CleanupChatHistory(sweepCtx, retention)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("Retention sweep canceled", "error", err)
			return 0
		}
		logger.Error("Retention worker failed to prune chat history", "error", err)
		return 0
	}
	if deleted > 0 {
		logger.Info("Retention worker pruned chat history", "count", deleted)
	}
	return deleted
}
