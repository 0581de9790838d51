// Package worker consumes job events from the bus and runs the matching
// automations.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/runlock"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/robfig/cron/v3"
)

const DefaultReaperSchedule = "@every 1m"

type Options struct {
	// ReaperSchedule is a cron expression. Empty disables the stale run reaper.
	ReaperSchedule string
	StaleRunAfter  time.Duration
}

type WorkerManager struct {
	id         string
	logger     *slog.Logger
	eventBus   eventbus.EventBus
	runs       *services.Runs
	dispatcher *services.Dispatcher
	cron       *cron.Cron
	opts       Options
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	runs *services.Runs,
	lock runlock.Locker,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	opts Options,
) *WorkerManager {
	logger = logger.With("module", "stageflow-worker", "worker_id", id)

	return &WorkerManager{
		id:         id,
		logger:     logger,
		eventBus:   eventBus,
		runs:       runs,
		dispatcher: services.NewDispatcher(p, runs, lock, logger),
		cron:       cron.New(),
		opts:       opts,
	}
}

// Start subscribes to the bus and schedules the reaper, then blocks until ctx
// is done.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	if err := w.dispatcher.Register(w.eventBus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if w.opts.ReaperSchedule != "" {
		if _, err := w.cron.AddFunc(w.opts.ReaperSchedule, func() { w.reap(ctx) }); err != nil {
			return fmt.Errorf("invalid reaper schedule %q: %w", w.opts.ReaperSchedule, err)
		}

		w.cron.Start()
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Shutting down worker...")
	<-w.cron.Stop().Done()

	return nil
}

func (w *WorkerManager) reap(ctx context.Context) {
	reaped, err := w.runs.ReapStale(ctx, w.opts.StaleRunAfter)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to reap stale runs", "error", err)

		return
	}

	if reaped > 0 {
		w.logger.InfoContext(ctx, "Reaped stale runs", "count", reaped)
	}
}
