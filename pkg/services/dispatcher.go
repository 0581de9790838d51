package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/runlock"
)

// Dispatcher turns domain events into live runs of every automation whose
// triggers match.
type Dispatcher struct {
	automations persistence.AutomationRepository
	runs        *Runs
	lock        runlock.Locker
	lockTTL     time.Duration
	logger      *slog.Logger
}

func NewDispatcher(p persistence.Persistence, runs *Runs, lock runlock.Locker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		automations: p.AutomationRepository(),
		runs:        runs,
		lock:        lock,
		lockTTL:     runlock.DefaultTTL,
		logger:      logger.With("module", "dispatcher"),
	}
}

// HandleStageChanged runs the automations listening on the job's new stage.
func (d *Dispatcher) HandleStageChanged(ctx context.Context, event events.JobStageChanged) error {
	return d.dispatch(ctx, event.WorkflowID, event.ToStageID, event.Subject())
}

// HandleJobCreated runs the automations listening on job creation.
func (d *Dispatcher) HandleJobCreated(ctx context.Context, event events.JobCreated) error {
	return d.dispatch(ctx, event.WorkflowID, event.StageID, event.Subject())
}

// dispatch executes each matching automation once per event. One automation
// failing does not stop the others; the joined error is returned so the bus
// redelivers the event, and the run lock skips automations that already ran.
func (d *Dispatcher) dispatch(ctx context.Context, workflowID, stageID string, subject events.Subject) error {
	triggers, err := d.automations.FindTriggers(ctx, subject.EventKey, workflowID, stageID)
	if err != nil {
		return fmt.Errorf("failed to find triggers: %w", err)
	}

	logger := d.logger.With("event_key", subject.EventKey, "event_id", subject.EventID, "job_id", subject.JobID)

	seen := make(map[string]bool, len(triggers))

	var errs []error

	for _, trigger := range triggers {
		if !trigger.Enabled || seen[trigger.AutomationID] {
			continue
		}

		seen[trigger.AutomationID] = true

		if err := d.runOnce(ctx, trigger.AutomationID, subject, logger); err != nil {
			errs = append(errs, fmt.Errorf("automation %s: %w", trigger.AutomationID, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) runOnce(ctx context.Context, automationID string, subject events.Subject, logger *slog.Logger) error {
	key := runlock.Key(subject.EventID, automationID)

	if subject.EventID != "" {
		acquired, err := d.lock.Acquire(ctx, key, d.lockTTL)
		if err != nil {
			return err
		}

		if !acquired {
			logger.InfoContext(ctx, "automation already ran for event", "automation_id", automationID)

			return nil
		}
	}

	run, err := d.runs.Execute(ctx, automationID, subject)
	if err != nil {
		if IsConflictError(err) || IsNotFoundError(err) {
			logger.WarnContext(ctx, "automation skipped", "automation_id", automationID, "error", err)

			return nil
		}

		if subject.EventID != "" {
			if releaseErr := d.lock.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				logger.ErrorContext(ctx, "failed to release run lock", "automation_id", automationID, "error", releaseErr)
			}
		}

		return err
	}

	logger.InfoContext(ctx, "automation dispatched", "automation_id", automationID, "run_id", run.ID, "status", run.Status)

	return nil
}

// Register routes the job events of the bus to the dispatcher.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.JobStageChangedEvent, func(ctx context.Context, event any) error {
		e, ok := event.(*events.JobStageChanged)
		if !ok {
			return fmt.Errorf("%w: unexpected payload %T", ErrInvalidRequest, event)
		}

		return d.HandleStageChanged(ctx, *e)
	})
	if err != nil {
		return err
	}

	return bus.Handle(events.JobCreatedEvent, func(ctx context.Context, event any) error {
		e, ok := event.(*events.JobCreated)
		if !ok {
			return fmt.Errorf("%w: unexpected payload %T", ErrInvalidRequest, event)
		}

		return d.HandleJobCreated(ctx, *e)
	})
}
