package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/metrics"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence"
)

// RunTimedOutMessage is the error recorded on runs reaped by ReapStale.
const RunTimedOutMessage = "run timed out"

// Runs executes published automation versions against workflow jobs.
type Runs struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	types       *nodetypes.Registry
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewRuns creates the run service. publisher may be nil, in which case no
// AutomationRunFinished events are emitted.
func NewRuns(p persistence.Persistence, eng *engine.Engine, types *nodetypes.Registry, publisher eventbus.EventPublisher, logger *slog.Logger) *Runs {
	return &Runs{
		persistence: p,
		engine:      eng,
		types:       types,
		publisher:   publisher,
		logger:      logger.With("module", "runs"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type TestRunRequest struct {
	JobID       string
	DryRun      bool
	FromStageID string
	// ToStageID defaults to the job's current stage.
	ToStageID string
	ActorID   string
	// EventKey selects the trigger nodes the walk starts from. Empty means
	// stage-entry triggers.
	EventKey string
}

type TestRunJob struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Contact *models.Contact `json:"contact"`
}

// TestRunResponse is what the "test this automation" screen renders. Success
// reports that the traversal completed; per-node failures are in Results.
type TestRunResponse struct {
	Success       bool                `json:"success"`
	Job           TestRunJob          `json:"job"`
	Results       []models.StepResult `json:"results"`
	AvailableData []string            `json:"available_data"`
	SkippedEdges  int                 `json:"skipped_edges"`
}

// TestRun walks the published version for a job without persisting anything.
// Outside dry run the runners do execute.
func (s *Runs) TestRun(ctx context.Context, automationID string, req TestRunRequest) (*TestRunResponse, error) {
	if req.JobID == "" {
		return nil, NewValidationError("TestRun", "missing_job", "job_id is required", ErrInvalidRequest)
	}

	_, version, err := s.published(ctx, automationID)
	if err != nil {
		return nil, err
	}

	eventKey := req.EventKey
	if eventKey == "" {
		eventKey = nodetypes.EventStageChanged
	}

	actx, err := s.loadContext(ctx, events.Subject{
		JobID:       req.JobID,
		FromStageID: req.FromStageID,
		ToStageID:   req.ToStageID,
		ActorID:     req.ActorID,
		EventKey:    eventKey,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Execute(ctx, version.Definition, actx, engine.Options{
		DryRun:    req.DryRun,
		SeedTypes: s.types.TriggerTypesForEvent(eventKey),
	})
	if err != nil {
		return nil, err
	}

	return &TestRunResponse{
		Success: true,
		Job: TestRunJob{
			ID:      actx.Job.ID,
			Title:   actx.Job.Title,
			Contact: actx.Job.Contact,
		},
		Results:       result.Steps,
		AvailableData: result.AvailableData,
		SkippedEdges:  result.Skipped,
	}, nil
}

// Execute is the live path: it runs the published version for the subject and
// records the run with one node run per visited node.
func (s *Runs) Execute(ctx context.Context, automationID string, subject events.Subject) (*models.AutomationRun, error) {
	if subject.JobID == "" {
		return nil, NewValidationError("Execute", "missing_job", "job_id is required", ErrInvalidRequest)
	}

	a, version, err := s.published(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if !a.Enabled {
		return nil, &ServiceError{Op: "Execute", Code: "automation_disabled", Err: ErrAutomationDisabled}
	}

	actx, err := s.loadContext(ctx, subject)
	if err != nil {
		return nil, err
	}

	started := s.now()
	run := &models.AutomationRun{
		AutomationID: a.ID,
		Version:      version.Version,
		TenantID:     a.TenantID,
		SubjectType:  models.SubjectTypeJob,
		SubjectID:    subject.JobID,
		EventKey:     subject.EventKey,
		EventID:      subject.EventID,
		Status:       models.RunStatusRunning,
		StartedAt:    &started,
		CreatedAt:    started,
	}

	runs := s.persistence.RunRepository()

	if err := runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	logger := s.logger.With("run_id", run.ID, "automation_id", a.ID, "version", version.Version)
	recorder := newRunRecorder(runs, run, logger, s.now)

	opts := engine.Options{Observer: recorder}
	if subject.EventKey != "" {
		opts.SeedTypes = s.types.TriggerTypesForEvent(subject.EventKey)
	}

	result, execErr := s.engine.Execute(ctx, version.Definition, actx, opts)

	finished := s.now()
	run.FinishedAt = &finished
	run.NodeRuns = recorder.nodeRuns

	switch {
	case execErr != nil:
		run.Status = models.RunStatusFailed
		run.Error = execErr.Error()
	case result.Failed():
		run.Status = models.RunStatusFailed
		run.Error = result.FirstError()
		run.PendingNodes = 0
	default:
		run.Status = models.RunStatusSucceeded
		run.PendingNodes = 0
	}

	// the run must be closed even when ctx was cancelled mid-traversal
	persistCtx := context.WithoutCancel(ctx)

	if err := runs.UpdateRun(persistCtx, run); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}

	metrics.ObserveRun(run.Status, finished.Sub(started))
	logger.InfoContext(ctx, "automation run finished", "status", run.Status, "steps", len(result.Steps))
	s.notifyFinished(persistCtx, run)

	return run, nil
}

func (s *Runs) List(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error) {
	if _, err := s.persistence.AutomationRepository().GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	if offset < 0 {
		return nil, NewValidationError("List", "invalid_offset", "offset must not be negative", ErrInvalidRequest)
	}

	return s.persistence.RunRepository().ListRuns(ctx, automationID, limit, offset)
}

// Get returns a run with its node runs.
func (s *Runs) Get(ctx context.Context, runID string) (*models.AutomationRun, error) {
	return s.persistence.RunRepository().GetRun(ctx, runID)
}

// ReapStale fails every queued or running run created more than olderThan ago.
// It returns the number of runs reaped.
func (s *Runs) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	runs := s.persistence.RunRepository()

	stale, err := runs.ListStaleRuns(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale runs: %w", err)
	}

	reaped := 0

	for _, run := range stale {
		finished := s.now()
		run.Status = models.RunStatusFailed
		run.Error = RunTimedOutMessage
		run.FinishedAt = &finished

		if err := runs.UpdateRun(ctx, run); err != nil {
			s.logger.ErrorContext(ctx, "failed to reap run", "run_id", run.ID, "error", err)

			continue
		}

		reaped++

		metrics.ObserveReaped()
		s.notifyFinished(ctx, run)
	}

	if reaped > 0 {
		s.logger.WarnContext(ctx, "stale runs reaped", "count", reaped)
	}

	return reaped, nil
}

func (s *Runs) published(ctx context.Context, automationID string) (*models.Automation, *models.AutomationVersion, error) {
	repo := s.persistence.AutomationRepository()

	a, err := repo.GetByID(ctx, automationID)
	if err != nil {
		return nil, nil, err
	}

	if !a.HasPublishedVersion() {
		return nil, nil, &ServiceError{Op: "published", Code: "no_published_version", Err: ErrNoPublishedVersion}
	}

	v, err := repo.GetVersion(ctx, automationID, *a.PublishedVersion)
	if err != nil {
		if persistence.IsVersionNotFound(err) {
			return nil, nil, &ServiceError{Op: "published", Code: "no_published_version", Err: ErrNoPublishedVersion}
		}

		return nil, nil, err
	}

	return a, v, nil
}

// loadContext resolves the job, stages and actor of a subject. Only the job is
// required; missing stages or actor leave their tokens empty.
func (s *Runs) loadContext(ctx context.Context, subject events.Subject) (*automation.Context, error) {
	jobs := s.persistence.JobRepository()

	job, err := jobs.GetJob(ctx, subject.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", subject.JobID, err)
	}

	actx := subject.Decorate(&automation.Context{Job: job})

	toStageID := subject.ToStageID
	if toStageID == "" {
		toStageID = job.StageID
	}

	actx.ToStage = s.loadStage(ctx, toStageID)
	actx.FromStage = s.loadStage(ctx, subject.FromStageID)

	if subject.ActorID != "" {
		actor, err := jobs.GetUser(ctx, subject.ActorID)
		if err != nil {
			s.logger.WarnContext(ctx, "actor not loaded", "actor_id", subject.ActorID, "error", err)
		} else {
			actx.Actor = actor
		}
	}

	return actx, nil
}

func (s *Runs) loadStage(ctx context.Context, id string) *models.Stage {
	if id == "" {
		return nil
	}

	stage, err := s.persistence.JobRepository().GetStage(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "stage not loaded", "stage_id", id, "error", err)

		return nil
	}

	return stage
}

func (s *Runs) notifyFinished(ctx context.Context, run *models.AutomationRun) {
	if s.publisher == nil {
		return
	}

	event := events.AutomationRunFinished{
		BaseEvent:    events.NewBaseEvent(run.ID, events.AutomationRunFinishedEvent),
		RunID:        run.ID,
		AutomationID: run.AutomationID,
		Status:       run.Status,
		Error:        run.Error,
	}
	event.TenantID = run.TenantID

	if err := s.publisher.Publish(ctx, run.AutomationID, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish run finished", "run_id", run.ID, "error", err)
	}
}

// runRecorder persists node runs and the pending-node count as the engine
// reports them. Storage failures are logged and never stop the traversal.
type runRecorder struct {
	runs     persistence.RunRepository
	run      *models.AutomationRun
	logger   *slog.Logger
	now      func() time.Time
	current  map[string]*models.AutomationNodeRun
	nodeRuns []*models.AutomationNodeRun
}

func newRunRecorder(runs persistence.RunRepository, run *models.AutomationRun, logger *slog.Logger, now func() time.Time) *runRecorder {
	return &runRecorder{
		runs:    runs,
		run:     run,
		logger:  logger,
		now:     now,
		current: make(map[string]*models.AutomationNodeRun),
	}
}

func (r *runRecorder) NodeStarted(ctx context.Context, node models.Node, input map[string]any) {
	nodeRun := &models.AutomationNodeRun{
		RunID:     r.run.ID,
		NodeID:    node.ID,
		NodeType:  node.Type,
		Status:    models.NodeStatusRunning,
		Attempts:  1,
		Input:     input,
		StartedAt: r.now(),
	}

	r.current[node.ID] = nodeRun
	r.save(ctx, nodeRun)
}

func (r *runRecorder) NodeFinished(ctx context.Context, node models.Node, step models.StepResult) {
	nodeRun, ok := r.current[node.ID]
	if !ok {
		return
	}

	delete(r.current, node.ID)

	finished := r.now()
	nodeRun.Status = step.Status
	nodeRun.Output = step.Output
	nodeRun.FinishedAt = &finished

	if step.Status == models.NodeStatusError {
		if msg, ok := step.Output["error"].(string); ok {
			nodeRun.Error = msg
		}
	}

	r.save(ctx, nodeRun)
	r.nodeRuns = append(r.nodeRuns, nodeRun)

	metrics.ObserveNode(node.Type, step.Status)
}

func (r *runRecorder) QueueChanged(ctx context.Context, pending int) {
	if r.run.PendingNodes == pending {
		return
	}

	r.run.PendingNodes = pending

	if err := r.runs.UpdateRun(ctx, r.run); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.ErrorContext(ctx, "failed to update pending nodes", "error", err)
	}
}

func (r *runRecorder) save(ctx context.Context, nodeRun *models.AutomationNodeRun) {
	if err := r.runs.SaveNodeRun(ctx, nodeRun); err != nil {
		r.logger.ErrorContext(ctx, "failed to record node run", "node_id", nodeRun.NodeID, "error", err)
	}
}
