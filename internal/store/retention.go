package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = time.Hour

// Pruner deletes history older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionWorker periodically prunes verification history older than the
// retention window.
type RetentionWorker struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionWorker creates a worker. A non-positive interval selects
// DefaultRetentionInterval.
func NewRetentionWorker(p Pruner, retention, interval time.Duration, logger *slog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		pruner:    p,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It always returns nil so it can sit in an errgroup next to the server.
func (w *RetentionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("Retention worker started", "interval", w.interval, "retention", w.retention)

	w.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			w.logger.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)
	deleted, err := w.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Retention worker failed to prune history", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info("Retention worker pruned history", "count", deleted, "cutoff", cutoff)
	}
}
