package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/metrics"
	"github.com/dukex/stageflow/pkg/mocks"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRuns_TestRunDryRun(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	resp, err := f.runs.TestRun(context.Background(), created.ID, TestRunRequest{JobID: f.job.ID, DryRun: true})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, f.job.ID, resp.Job.ID)
	assert.Equal(t, f.job.Title, resp.Job.Title)
	require.NotNil(t, resp.Job.Contact)
	assert.Equal(t, "Ana García", resp.Job.Contact.Name)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.NodeStatusSuccess, resp.Results[0].Status)
	assert.Equal(t, models.NodeStatusDryRun, resp.Results[1].Status)
	assert.Equal(t, true, resp.Results[1].Output["dry_run"])
	assert.Empty(t, f.calls, "dry run never calls runners")
	assert.Contains(t, resp.AvailableData, "contact.name")
	assert.Contains(t, resp.AvailableData, "to_stage.name")

	runs, err := f.runs.List(context.Background(), created.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "test runs are not persisted")
}

func TestRuns_TestRunLive(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	resp, err := f.runs.TestRun(context.Background(), created.ID, TestRunRequest{JobID: f.job.ID, ActorID: "u-1"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.NodeStatusSuccess, resp.Results[1].Status)
	assert.Equal(t, []string{f.job.ID}, f.calls)
	assert.Contains(t, resp.AvailableData, "input.status_code")
}

func TestRuns_TestRunErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unpublished := &models.Automation{Name: "Sin versión", Enabled: true}
	require.NoError(t, f.persistence.AutomationRepository().Save(ctx, unpublished))

	_, err := f.runs.TestRun(ctx, unpublished.ID, TestRunRequest{JobID: f.job.ID})
	require.ErrorIs(t, err, ErrNoPublishedVersion)
	assert.True(t, IsNotFoundError(err))

	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	_, err = f.runs.TestRun(ctx, created.ID, TestRunRequest{JobID: "missing"})
	require.ErrorIs(t, err, persistence.ErrJobNotFound)

	_, err = f.runs.TestRun(ctx, created.ID, TestRunRequest{})
	assert.True(t, IsValidationError(err))

	_, err = f.runs.TestRun(ctx, "missing", TestRunRequest{JobID: f.job.ID})
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestRuns_ExecuteRecordsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	run, err := f.runs.Execute(ctx, created.ID, events.Subject{
		JobID:       f.job.ID,
		FromStageID: "st-1",
		ToStageID:   "st-2",
		EventKey:    nodetypes.EventStageChanged,
		EventID:     "evt-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Version)
	assert.Equal(t, "tenant-1", run.TenantID)
	assert.Equal(t, models.SubjectTypeJob, run.SubjectType)
	assert.Equal(t, f.job.ID, run.SubjectID)
	assert.Equal(t, 0, run.PendingNodes)
	assert.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)

	stored, err := f.runs.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, stored.Status)
	require.Len(t, stored.NodeRuns, 2)
	assert.Equal(t, "t1", stored.NodeRuns[0].NodeID)
	assert.Equal(t, "a1", stored.NodeRuns[1].NodeID)
	assert.Equal(t, models.NodeStatusSuccess, stored.NodeRuns[1].Status)
	assert.Equal(t, 1, stored.NodeRuns[1].Attempts)
	assert.NotNil(t, stored.NodeRuns[1].FinishedAt)

	listed, err := f.runs.List(ctx, created.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRuns_ExecuteCountsRunAndNodes(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	runsBefore := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(string(models.RunStatusSucceeded)))
	nodesBefore := testutil.ToFloat64(metrics.NodeRunsTotal.WithLabelValues(nodetypes.TypeWebhook, string(models.NodeStatusSuccess)))

	_, err := f.runs.Execute(context.Background(), created.ID, events.Subject{
		JobID:       f.job.ID,
		FromStageID: "st-1",
		ToStageID:   "st-2",
		EventKey:    nodetypes.EventStageChanged,
	})
	require.NoError(t, err)

	assert.InDelta(t, runsBefore+1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(string(models.RunStatusSucceeded))), 0.0001)
	assert.InDelta(t, nodesBefore+1, testutil.ToFloat64(metrics.NodeRunsTotal.WithLabelValues(nodetypes.TypeWebhook, string(models.NodeStatusSuccess))), 0.0001)
}

func TestRuns_ExecuteFailedStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com", "fail": true}))

	run, err := f.runs.Execute(ctx, created.ID, events.Subject{JobID: f.job.ID, EventKey: nodetypes.EventStageChanged})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "webhook unreachable", run.Error)

	stored, err := f.runs.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stored.NodeRuns, 2)
	assert.Equal(t, models.NodeStatusError, stored.NodeRuns[1].Status)
	assert.Equal(t, "webhook unreachable", stored.NodeRuns[1].Error)
}

func TestRuns_ExecuteDisabledAutomation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	_, err := f.automations.Toggle(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.runs.Execute(ctx, created.ID, events.Subject{JobID: f.job.ID})
	require.ErrorIs(t, err, ErrAutomationDisabled)
	assert.True(t, IsConflictError(err))
	assert.Empty(t, f.calls)
}

func TestRuns_ExecutePublishesRunFinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, created.ID, mock.MatchedBy(func(e events.AutomationRunFinished) bool {
		return e.AutomationID == created.ID && e.Status == models.RunStatusSucceeded
	})).Return(errors.New("bus down")).Once()

	runs := NewRuns(f.persistence, engine.New(f.types, f.runners, nil, testLogger()), f.types, bus, testLogger())

	run, err := runs.Execute(ctx, created.ID, events.Subject{JobID: f.job.ID})
	require.NoError(t, err, "publish failures are logged only")
	assert.Equal(t, models.RunStatusSucceeded, run.Status)

	bus.AssertExpectations(t)
}

func TestRunRecorder_NodeInProgressIsRunning(t *testing.T) {
	repo := &mocks.MockRunRepository{}

	var saved []models.NodeStatus

	repo.On("SaveNodeRun", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = append(saved, args.Get(1).(*models.AutomationNodeRun).Status)
	}).Return(nil)

	run := &models.AutomationRun{ID: "run-1", AutomationID: "a-1", Status: models.RunStatusRunning}
	recorder := newRunRecorder(repo, run, testLogger(), time.Now)
	node := models.Node{ID: "a1", Type: nodetypes.TypeLog}

	recorder.NodeStarted(context.Background(), node, map[string]any{"message": "hola"})
	require.Equal(t, []models.NodeStatus{models.NodeStatusRunning}, saved)
	assert.Empty(t, recorder.nodeRuns)

	recorder.NodeFinished(context.Background(), node, models.StepResult{NodeID: "a1", Status: models.NodeStatusSkipped})
	assert.Equal(t, []models.NodeStatus{models.NodeStatusRunning, models.NodeStatusSkipped}, saved)
	require.Len(t, recorder.nodeRuns, 1)
	assert.NotNil(t, recorder.nodeRuns[0].FinishedAt)
}

func TestRuns_ReapStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))
	repo := f.persistence.RunRepository()

	stale := &models.AutomationRun{
		AutomationID: created.ID,
		Version:      1,
		Status:       models.RunStatusRunning,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	fresh := &models.AutomationRun{
		AutomationID: created.ID,
		Version:      1,
		Status:       models.RunStatusQueued,
		CreatedAt:    time.Now().UTC(),
	}

	require.NoError(t, repo.CreateRun(ctx, stale))
	require.NoError(t, repo.CreateRun(ctx, fresh))

	reaped, err := f.runs.ReapStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	got, err := f.runs.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, RunTimedOutMessage, got.Error)
	assert.NotNil(t, got.FinishedAt)

	got, err = f.runs.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, got.Status)
}
