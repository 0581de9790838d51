package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/mocks"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAutomations_Create(t *testing.T) {
	f := newFixture(t)

	detail := f.create(t, webhookPayload(map[string]any{"url": "https://hooks.example.com"}))

	assert.NotEmpty(t, detail.ID)
	assert.True(t, detail.Enabled)
	require.NotNil(t, detail.PublishedVersion)
	assert.Equal(t, 1, *detail.PublishedVersion)
	require.NotNil(t, detail.Definition)
	assert.Len(t, detail.Definition.Nodes, 2)
	assert.Empty(t, detail.Warnings)

	require.Len(t, detail.Triggers, 1)
	trigger := detail.Triggers[0]
	assert.Equal(t, "t1", trigger.NodeID)
	assert.Equal(t, nodetypes.EventStageChanged, trigger.EventKey)
	assert.Equal(t, "wf-1", trigger.WorkflowID)
	assert.Equal(t, "st-2", trigger.StageID)
	assert.True(t, trigger.Enabled)
}

func createRequest() CreateAutomationRequest {
	return CreateAutomationRequest{
		Name:    "Avisar al cliente",
		Payload: webhookPayload(map[string]any{"url": "https://hooks.example.com"}),
	}
}

func withSavedID(id string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(1).(*models.Automation).ID = id
	}
}

func TestAutomations_CreateRemovesAutomationWhenVersionFails(t *testing.T) {
	p := mocks.NewMockPersistence()
	repo := p.GetMockAutomationRepository()

	repo.On("Save", mock.Anything, mock.Anything).Run(withSavedID("a-1")).Return(nil)
	repo.On("CreateVersion", mock.Anything, "a-1", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))
	repo.On("Delete", mock.Anything, "a-1").Return(nil)

	_, err := NewAutomations(p, nodetypes.Default(), testLogger()).Create(context.Background(), createRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	repo.AssertCalled(t, "Delete", mock.Anything, "a-1")
	repo.AssertNotCalled(t, "SetPublishedVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutomations_CreateRemovesAutomationWhenPublishFails(t *testing.T) {
	p := mocks.NewMockPersistence()
	repo := p.GetMockAutomationRepository()

	repo.On("Save", mock.Anything, mock.Anything).Run(withSavedID("a-1")).Return(nil)
	repo.On("CreateVersion", mock.Anything, "a-1", mock.Anything, mock.Anything).
		Return(&models.AutomationVersion{AutomationID: "a-1", Version: 1}, nil)
	repo.On("SetPublishedVersion", mock.Anything, "a-1", 1).Return(errors.New("connection reset"))
	repo.On("Delete", mock.Anything, "a-1").Return(errors.New("still down"))

	_, err := NewAutomations(p, nodetypes.Default(), testLogger()).Create(context.Background(), createRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "still down")

	repo.AssertExpectations(t)
}

func TestAutomations_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.automations.Create(ctx, CreateAutomationRequest{Name: "ab"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = f.automations.Create(ctx, CreateAutomationRequest{
		Name: "Duplicados",
		Payload: definition.FormPayload{
			Nodes: []models.Node{testutil.Trigger("t1"), testutil.Trigger("t1")},
		},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	require.ErrorIs(t, err, ErrDuplicateNodeID)
	require.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestAutomations_CreateReturnsLintWarnings(t *testing.T) {
	f := newFixture(t)

	detail := f.create(t, webhookPayload(map[string]any{}))

	assert.NotEmpty(t, detail.Warnings, "webhook without url violates its schema")
}

func TestAutomations_CreateFromLegacyActions(t *testing.T) {
	f := newFixture(t)

	detail := f.create(t, definition.FormPayload{
		WorkflowID: "wf-1",
		StageID:    "st-3",
		Actions: []definition.LegacyAction{
			{Type: nodetypes.TypeLog, Config: map[string]any{"message": "hola"}},
			{Type: nodetypes.TypeWebhook, Config: map[string]any{"url": "https://hooks.example.com"}},
		},
	})

	require.NotNil(t, detail.Definition)
	assert.Len(t, detail.Definition.Nodes, 3)
	assert.Len(t, detail.Definition.Edges, 2)
	require.Len(t, detail.Triggers, 1)
	assert.Equal(t, "st-3", detail.Triggers[0].StageID)
}

func TestAutomations_UpdateCreatesVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://a.example.com"}))

	name := "Avisar por Telegram"
	payload := webhookPayload(map[string]any{"url": "https://b.example.com"})

	updated, err := f.automations.Update(ctx, created.ID, UpdateAutomationRequest{Name: &name, Payload: &payload})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	require.NotNil(t, updated.PublishedVersion)
	assert.Equal(t, 2, *updated.PublishedVersion)

	draft := webhookPayload(map[string]any{"url": "https://c.example.com"})
	publish := false

	updated, err = f.automations.Update(ctx, created.ID, UpdateAutomationRequest{Payload: &draft, Publish: &publish})
	require.NoError(t, err)
	assert.Equal(t, 2, *updated.PublishedVersion, "unpublished save keeps the live version")

	versions, err := f.automations.Versions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version)

	v1, err := f.automations.Version(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", v1.Definition.Nodes[1].Config["url"], "versions are immutable")

	published, err := f.automations.Publish(ctx, created.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, *published.PublishedVersion)
	assert.Equal(t, "https://c.example.com", published.Definition.Nodes[1].Config["url"])

	_, err = f.automations.Publish(ctx, created.ID, 7)
	assert.True(t, IsNotFoundError(err))
}

func TestAutomations_TriggersKeepStateAcrossPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://a.example.com"}))

	toggled, err := f.automations.ToggleTrigger(ctx, created.ID, created.Triggers[0].ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	payload := webhookPayload(map[string]any{"url": "https://b.example.com"})
	_, err = f.automations.Update(ctx, created.ID, UpdateAutomationRequest{Payload: &payload})
	require.NoError(t, err)

	triggers, err := f.automations.Triggers(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, created.Triggers[0].ID, triggers[0].ID)
	assert.False(t, triggers[0].Enabled)

	_, err = f.automations.ToggleTrigger(ctx, created.ID, "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestAutomations_ToggleAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, webhookPayload(map[string]any{"url": "https://a.example.com"}))
	f.create(t, webhookPayload(map[string]any{"url": "https://b.example.com"}))

	toggled, err := f.automations.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	enabled := true
	list, err := f.automations.List(ctx, ListAutomationsRequest{TenantID: "tenant-1", Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, list.Automations, 1)

	all, err := f.automations.List(ctx, ListAutomationsRequest{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)

	_, err = f.automations.List(ctx, ListAutomationsRequest{Offset: -1})
	assert.True(t, IsValidationError(err))

	_, err = f.automations.Toggle(ctx, "missing")
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestDeriveTriggers(t *testing.T) {
	types := nodetypes.Default()
	def := testutil.CreateTestDefinition([]models.Node{
		testutil.Trigger("t1"),
		testutil.CreateTestNode(testutil.WithID("t2"), testutil.WithType(nodetypes.TypeJobCreated)),
		testutil.Action("a1", nodetypes.TypeLog),
	}, nil)

	triggers := DeriveTriggers(types, "auto-1", def, []*models.AutomationTrigger{
		{ID: "keep", NodeID: "t2", EventKey: nodetypes.EventJobCreated, Enabled: false},
	})

	require.Len(t, triggers, 2)
	assert.Equal(t, nodetypes.EventStageChanged, triggers[0].EventKey)
	assert.Equal(t, "st-2", triggers[0].StageID)
	assert.Empty(t, triggers[0].ID)
	assert.Equal(t, "keep", triggers[1].ID)
	assert.False(t, triggers[1].Enabled)
	assert.Equal(t, "auto-1", triggers[1].AutomationID)
}

func TestAutomations_HealthCheck(t *testing.T) {
	f := newFixture(t)

	msg, ok := f.automations.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", msg)
}
