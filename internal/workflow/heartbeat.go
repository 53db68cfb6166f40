package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"modelforge/internal/logging"
	"modelforge/internal/queue"
)

// HeartbeatMonitor keeps the lease of a running item alive.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// StartLoop renews the lease of queueID every interval until ctx is done.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, queueID string) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, queueID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat cancelled")
				} else {
					logger.Warn("heartbeat update failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "heartbeat_failed"),
						logging.String(logging.FieldErrorHint, "lease may expire and the job be claimed again"),
					)
				}
			}
		}
	}
}
