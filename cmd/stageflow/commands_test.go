package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, v any) string {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(context.Background(), append([]string{"stageflow"}, args...))

	return out.String(), err
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "automation.json", map[string]any{
		"nodes": []models.Node{testutil.Trigger("t1"), testutil.CreateTestNode(testutil.WithID("a1"))},
		"edges": []models.Edge{testutil.Edge("t1", "a1"), testutil.Edge("a1", "ghost")},
	})

	out, err := run(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "ok: 2 nodes, 2 edges")
}

func TestValidate_Errors(t *testing.T) {
	_, err := run(t, "validate")
	require.ErrorIs(t, err, errMissingFile)

	duplicate := writeFile(t, "duplicate.json", map[string]any{
		"nodes": []models.Node{testutil.Trigger("t1"), testutil.CreateTestNode(testutil.WithID("t1"))},
	})

	_, err = run(t, "validate", duplicate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid definition")
}

func TestDryRun(t *testing.T) {
	definitionPath := writeFile(t, "automation.json", map[string]any{
		"workflow_id": "wf-1",
		"stage_id":    "st-2",
		"actions": []map[string]any{
			{"type": "util.log", "config": map[string]any{"message": "Hola {{contact.name}}"}},
		},
	})
	jobPath := writeFile(t, "job.json", testutil.CreateTestJob())

	out, err := run(t, "dry-run", "--job-file", jobPath, definitionPath)
	require.NoError(t, err)

	var result struct {
		Results []models.StepResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 2)
	assert.Equal(t, models.NodeStatusDryRun, result.Results[1].Status)
}
