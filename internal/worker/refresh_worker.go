// Package worker runs background jobs that keep the shared dataset fresh.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"titus/internal/amqp"
	"titus/internal/services"
)

// Reloader is the part of DatasetService the worker drives.
type Reloader interface {
	Reload(ctx context.Context) (*services.Dataset, error)
}

// Consumer delivers refresh requests.
type Consumer interface {
	ConsumeRefreshRequests(ctx context.Context, handler func(context.Context, *amqp.RefreshRequestMessage) error) error
}

// RefreshWorker reloads the default source when asked over AMQP and,
// optionally, on a fixed interval.
type RefreshWorker struct {
	reloader Reloader
	consumer Consumer
	interval time.Duration
	logger   *slog.Logger
}

// NewRefreshWorker builds a worker. consumer may be nil and interval may be
// zero; the worker then only performs the startup load.
func NewRefreshWorker(reloader Reloader, consumer Consumer, interval time.Duration, logger *slog.Logger) *RefreshWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshWorker{reloader: reloader, consumer: consumer, interval: interval, logger: logger}
}

// HandleRefreshRequest reloads once. Errors are returned so the message is
// requeued.
func (w *RefreshWorker) HandleRefreshRequest(ctx context.Context, msg *amqp.RefreshRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh request",
		"reason", msg.Reason,
		"requested_by", msg.RequestedBy,
		"requested_at", msg.Timestamp)

	d, err := w.reloader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}
	w.logger.InfoContext(ctx, "Refresh request completed", "fingerprint", d.Fingerprint, "rows", d.Table.Len())
	return nil
}

// StartupLoad performs the first load. A failure is logged and not fatal:
// the dashboard starts empty and a later refresh may succeed.
func (w *RefreshWorker) StartupLoad(ctx context.Context) {
	if _, err := w.reloader.Reload(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial dataset load failed", "error", err)
	}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (w *RefreshWorker) Run(ctx context.Context) error {
	w.StartupLoad(ctx)

	errc := make(chan error, 1)
	if w.consumer != nil {
		go func() {
			errc <- w.consumer.ConsumeRefreshRequests(ctx, w.HandleRefreshRequest)
		}()
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("refresh consumer stopped: %w", err)
		case <-tick:
			if _, err := w.reloader.Reload(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled reload failed", "error", err)
			}
		}
	}
}
