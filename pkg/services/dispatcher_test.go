package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/mocks"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/registry"
	"github.com/dukex/stageflow/pkg/runlock"
	"github.com/dukex/stageflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stageChanged(jobID, toStageID string) events.JobStageChanged {
	return events.JobStageChanged{
		BaseEvent:   events.NewBaseEvent("evt-1", events.JobStageChangedEvent),
		JobID:       jobID,
		WorkflowID:  "wf-1",
		FromStageID: "st-1",
		ToStageID:   toStageID,
	}
}

func TestDispatcher_HandleStageChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	d := NewDispatcher(f.persistence, f.runs, runlock.NewMemory(), testLogger())

	require.NoError(t, d.HandleStageChanged(ctx, stageChanged(f.job.ID, "st-3")))
	assert.Empty(t, f.calls, "trigger listens on st-2 only")

	require.NoError(t, d.HandleStageChanged(ctx, stageChanged(f.job.ID, "st-2")))
	assert.Len(t, f.calls, 1)

	require.NoError(t, d.HandleStageChanged(ctx, stageChanged(f.job.ID, "st-2")))
	assert.Len(t, f.calls, 1, "a redelivered event does not run twice")

	runs, err := f.runs.List(ctx, created.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "evt-1", runs[0].EventID)
}

func TestDispatcher_SkipsDisabledTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	_, err := f.automations.ToggleTrigger(ctx, created.ID, created.Triggers[0].ID)
	require.NoError(t, err)

	d := NewDispatcher(f.persistence, f.runs, runlock.NewMemory(), testLogger())

	require.NoError(t, d.HandleStageChanged(ctx, stageChanged(f.job.ID, "st-2")))
	assert.Empty(t, f.calls)
}

func TestDispatcher_HandleJobCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, webhookPayload(map[string]any{"url": "https://stage.example.com"}))
	f.create(t, webhookPayloadFrom(
		testutil.CreateTestNode(testutil.WithID("t1"), testutil.WithType(nodetypes.TypeJobCreated)),
		map[string]any{"url": "https://created.example.com"},
	))

	d := NewDispatcher(f.persistence, f.runs, runlock.NewMemory(), testLogger())

	err := d.HandleJobCreated(ctx, events.JobCreated{
		BaseEvent:  events.NewBaseEvent("evt-2", events.JobCreatedEvent),
		JobID:      f.job.ID,
		WorkflowID: "wf-1",
		StageID:    "st-1",
	})
	require.NoError(t, err)
	assert.Len(t, f.calls, 1, "only the job created automation runs")
}

func TestDispatcher_ReleasesLockOnFailure(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockPersistence()
	automations := store.GetMockAutomationRepository()

	automations.On("FindTriggers", mock.Anything, nodetypes.EventStageChanged, "wf-1", "st-2").
		Return([]*models.AutomationTrigger{{ID: "tr-1", AutomationID: "auto-1", Enabled: true}}, nil)
	automations.On("GetByID", mock.Anything, "auto-1").Return(nil, errors.New("connection reset"))

	lock := &mocks.MockLocker{}
	key := runlock.Key("evt-1", "auto-1")
	lock.On("Acquire", mock.Anything, key, runlock.DefaultTTL).Return(true, nil).Once()
	lock.On("Release", mock.Anything, key).Return(nil).Once()

	types := nodetypes.Default()
	runs := NewRuns(store, engine.New(types, registry.NewRegistry(testLogger()), nil, testLogger()), types, nil, testLogger())
	d := NewDispatcher(store, runs, lock, testLogger())

	err := d.HandleStageChanged(ctx, stageChanged("job-1", "st-2"))
	require.ErrorContains(t, err, "connection reset")

	lock.AssertExpectations(t)
	automations.AssertExpectations(t)
}

func TestDispatcher_SkipsMissingJob(t *testing.T) {
	f := newFixture(t)
	f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	d := NewDispatcher(f.persistence, f.runs, runlock.NewMemory(), testLogger())

	require.NoError(t, d.HandleStageChanged(context.Background(), stageChanged("missing-job", "st-2")))
	assert.Empty(t, f.calls)
}

func TestDispatcher_LockError(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	lock := &mocks.MockLocker{}
	lock.On("Acquire", mock.Anything, runlock.Key("evt-1", created.ID), runlock.DefaultTTL).Return(false, errors.New("redis down"))

	d := NewDispatcher(f.persistence, f.runs, lock, testLogger())

	err := d.HandleStageChanged(context.Background(), stageChanged(f.job.ID, "st-2"))
	require.ErrorContains(t, err, "redis down")
	assert.Empty(t, f.calls)
}

func TestDispatcher_Register(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.persistence, f.runs, runlock.NewMemory(), testLogger())

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.JobStageChangedEvent, mock.Anything).Return(nil).Once()
	bus.On("Handle", events.JobCreatedEvent, mock.Anything).Return(nil).Once()

	require.NoError(t, d.Register(bus))
	bus.AssertExpectations(t)
}

func webhookPayloadFrom(trigger models.Node, config map[string]any) definition.FormPayload {
	payload := webhookPayload(config)
	payload.Nodes[0] = trigger

	return payload
}
