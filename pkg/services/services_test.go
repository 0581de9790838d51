package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence/file"
	"github.com/dukex/stageflow/pkg/registry"
	"github.com/dukex/stageflow/pkg/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	persistence *file.Persistence
	types       *nodetypes.Registry
	runners     *registry.Registry
	automations *Automations
	runs        *Runs
	calls       []string
	job         *models.Job
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newFixture wires the services over file persistence with a seeded job in
// stage st-2 of workflow wf-1. The webhook runner is replaced by a recorder.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		persistence: file.NewPersistence(t.TempDir()),
		types:       nodetypes.Default(),
	}

	logger := testLogger()

	f.runners = registry.NewRegistry(logger)
	f.runners.RegisterDefaults(registry.Dependencies{Logger: logger, Jobs: f.persistence.JobRepository()})
	f.runners.Register(nodetypes.TypeWebhook, registry.RunnerFunc(
		func(_ context.Context, actx *automation.Context, config, _ map[string]any) (models.NodeResult, error) {
			f.calls = append(f.calls, actx.JobID())

			if config["fail"] == true {
				return models.NodeResult{}, errors.New("webhook unreachable")
			}

			return models.Succeeded(map[string]any{"status_code": 200}), nil
		}))

	eng := engine.New(f.types, f.runners, nil, logger)
	f.automations = NewAutomations(f.persistence, f.types, logger)
	f.runs = NewRuns(f.persistence, eng, f.types, nil, logger)

	ctx := context.Background()
	jobs := f.persistence.JobRepository()

	f.job = testutil.CreateTestJob()
	require.NoError(t, jobs.SaveJob(ctx, f.job))
	require.NoError(t, jobs.SaveStage(ctx, &models.Stage{ID: "st-1", WorkflowID: "wf-1", Name: "Nuevo"}))
	require.NoError(t, jobs.SaveStage(ctx, &models.Stage{ID: "st-2", WorkflowID: "wf-1", Name: "En curso", Position: 1}))
	require.NoError(t, jobs.SaveStage(ctx, &models.Stage{ID: "st-3", WorkflowID: "wf-1", Name: "Terminado", Position: 2}))
	require.NoError(t, jobs.SaveUser(ctx, &models.User{ID: "u-1", Name: "Luis"}))

	return f
}

func webhookPayload(config map[string]any) definition.FormPayload {
	return definition.FormPayload{
		Nodes: []models.Node{
			testutil.Trigger("t1"),
			testutil.CreateTestNode(testutil.WithID("a1"), testutil.WithType(nodetypes.TypeWebhook), testutil.WithConfig(config)),
		},
		Edges: testutil.Chain("t1", "a1"),
	}
}

func (f *fixture) create(t *testing.T, payload definition.FormPayload) *AutomationDetail {
	t.Helper()

	detail, err := f.automations.Create(context.Background(), CreateAutomationRequest{
		TenantID:  "tenant-1",
		Name:      "Avisar al cliente",
		CreatedBy: "u-1",
		Payload:   payload,
	})
	require.NoError(t, err)

	return detail
}
