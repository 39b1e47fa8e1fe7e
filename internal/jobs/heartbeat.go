// Package jobs runs periodic maintenance tasks in serve mode.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/readmegen/internal/storage"
)

// Heartbeat periodically logs storage statistics so operators can see the
// service is alive and how much it has produced.
type Heartbeat struct {
	scheduler gocron.Scheduler
	store     storage.Store
	interval  time.Duration
}

// NewHeartbeat creates the heartbeat job. A non-positive interval defaults
// to five minutes.
func NewHeartbeat(store storage.Store, interval time.Duration) (*Heartbeat, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Heartbeat{scheduler: scheduler, store: store, interval: interval}, nil
}

// Start schedules and starts the heartbeat.
func (h *Heartbeat) Start(ctx context.Context) error {
	_, err := h.scheduler.NewJob(
		gocron.DurationJob(h.interval),
		gocron.NewTask(h.tick, ctx),
		gocron.WithName("storage-stats-heartbeat"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule heartbeat: %w", err)
	}

	h.scheduler.Start()
	slog.Info("heartbeat started", "interval", h.interval)
	return nil
}

// Stop shuts the scheduler down.
func (h *Heartbeat) Stop() error {
	return h.scheduler.Shutdown()
}

func (h *Heartbeat) tick(ctx context.Context) {
	statsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := h.store.Stats(statsCtx)
	if err != nil {
		slog.Warn("heartbeat stats query failed", "error", err)
		return
	}
	slog.Info("storage stats",
		"identities", stats.Identities,
		"sessions", stats.Sessions,
		"generations", stats.Generations)
}
