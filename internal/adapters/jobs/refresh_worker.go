package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/PykeW/update-all/internal/application"
)

// LinkRefreshWorker periodically re-signs download links before they expire,
// so a cold catalog entry never hands out a dead URL.
type LinkRefreshWorker struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
}

func NewLinkRefreshWorker(logger *slog.Logger, service *application.Service, interval time.Duration) *LinkRefreshWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &LinkRefreshWorker{
		logger:   logger,
		service:  service,
		interval: interval,
	}
}

// Run executes one refresh pass immediately and then on every tick until the
// context is canceled.
func (w *LinkRefreshWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		refreshed, err := w.service.RefreshExpiringLinks(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "link refresh iteration failed",
				"module", "jobs.refresh_worker",
				"layer", "adapter",
				"operation", "refresh_expiring_links",
				"outcome", "failure",
				"error", err,
			)
		} else {
			w.logger.InfoContext(ctx, "link refresh iteration finished",
				"module", "jobs.refresh_worker",
				"layer", "adapter",
				"operation", "refresh_expiring_links",
				"outcome", "success",
				"refreshed", refreshed,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
