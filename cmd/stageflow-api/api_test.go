package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/stageflow/pkg/cmd"
	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence/file"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	types := nodetypes.Default()
	runners := cmd.NewRunnerRegistry(logger, persistence.JobRepository(), cmd.RunnerOptions{})

	bus, err := cmd.NewEventBus("gochannel", "", "stageflow-api-test", logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	stack := &cmd.Stack{
		Logger:      logger,
		Persistence: persistence,
		NodeTypes:   types,
		Runners:     runners,
		EventBus:    bus,
		Automations: services.NewAutomations(persistence, types, logger),
		Runs:        services.NewRuns(persistence, engine.New(types, runners, nil, logger), types, bus, logger),
	}

	return NewAPI(logger, stack).App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Stageflow API", body)
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz", "/health"} {
		status, _ := get(t, app, path)
		assert.Equal(t, http.StatusOK, status, path)
	}
}

func TestAPI_Routes(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, "/node-types")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, nodetypes.TypeStageEntered)

	status, _ = get(t, app, "/automations")
	assert.Equal(t, http.StatusOK, status)

	status, _ = get(t, app, "/runs/unknown")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_Metrics(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}
