package events

import (
	"context"
	"log/slog"
	"time"
)

type WaitListReleaser interface {
	ReleaseDueWaitList(ctx context.Context) (int, error)
}

// WaitListWorker periodically re-queues wait-listed appointments that came
// inside the authorization window.
type WaitListWorker struct {
	logger   *slog.Logger
	releaser WaitListReleaser
	interval time.Duration
}

func NewWaitListWorker(logger *slog.Logger, releaser WaitListReleaser, interval time.Duration) *WaitListWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WaitListWorker{logger: logger, releaser: releaser, interval: interval}
}

func (w *WaitListWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		released, err := w.releaser.ReleaseDueWaitList(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			w.logger.Error("wait list sweep failed",
				"module", "events.waitlist_worker",
				"layer", "adapter",
				"operation", "release_due",
				"outcome", "failure",
				"error", err,
			)
		case released > 0:
			w.logger.Info("wait list sweep finished",
				"module", "events.waitlist_worker",
				"layer", "adapter",
				"operation", "release_due",
				"outcome", "success",
				"released", released,
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
