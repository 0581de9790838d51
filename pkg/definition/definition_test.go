package definition

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_PassThroughFillsDefaults(t *testing.T) {
	def := Build(FormPayload{
		Nodes: []models.Node{
			{ID: "t1", Type: nodetypes.TypeStageEntered, Position: models.Position{X: 10, Y: 20}, Config: map[string]any{"stage_id": "st"}},
			{},
			{ID: "a2", Type: nodetypes.TypeTelegram},
		},
		Edges: []models.Edge{{From: "t1", To: "a2", SourceHandle: "true"}},
	})

	require.Len(t, def.Nodes, 3)

	assert.Equal(t, models.Position{X: 10, Y: 20}, def.Nodes[0].Position)

	assert.Regexp(t, regexp.MustCompile(`^n_[0-9a-f]{10}$`), def.Nodes[1].ID)
	assert.Equal(t, nodetypes.TypeWebhook, def.Nodes[1].Type)
	assert.Equal(t, models.Position{X: 0, Y: 120}, def.Nodes[1].Position)
	assert.Equal(t, map[string]any{}, def.Nodes[1].Config)

	assert.Equal(t, models.Position{X: 0, Y: 240}, def.Nodes[2].Position)
	assert.Equal(t, []models.Edge{{From: "t1", To: "a2", SourceHandle: "true"}}, def.Edges)
}

func TestBuild_LegacyChain(t *testing.T) {
	def := Build(FormPayload{
		WorkflowID: "wf1",
		StageID:    "st2",
		Actions: []LegacyAction{
			{Type: nodetypes.TypeTelegram, Config: map[string]any{"text": "hola"}},
			{},
		},
	})

	require.Len(t, def.Nodes, 3)
	assert.Equal(t, "t1", def.Nodes[0].ID)
	assert.Equal(t, nodetypes.TypeStageEntered, def.Nodes[0].Type)
	assert.Equal(t, map[string]any{"workflow_id": "wf1", "stage_id": "st2"}, def.Nodes[0].Config)

	assert.Equal(t, "a1", def.Nodes[1].ID)
	assert.Equal(t, nodetypes.TypeTelegram, def.Nodes[1].Type)
	assert.Equal(t, "a2", def.Nodes[2].ID)
	assert.Equal(t, nodetypes.TypeWebhook, def.Nodes[2].Type)
	assert.Equal(t, float64(240), def.Nodes[2].Position.Y)

	assert.Equal(t, []models.Edge{{From: "t1", To: "a1"}, {From: "a1", To: "a2"}}, def.Edges)
}

func TestBuild_EmptyPayload(t *testing.T) {
	def := Build(FormPayload{})

	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "t1", def.Nodes[0].ID)
	assert.Empty(t, def.Edges)
}

func TestBuild_ExplicitEmptyGraph(t *testing.T) {
	var p FormPayload
	require.NoError(t, json.Unmarshal([]byte(`{"nodes": [], "actions": [{"type": "util.log"}]}`), &p))

	def := Build(p)

	assert.Empty(t, def.Nodes)
	assert.Empty(t, def.Edges)
	assert.NotNil(t, def.Nodes)
}

func TestNewNodeID_Unique(t *testing.T) {
	seen := map[string]bool{}

	for range 100 {
		id := NewNodeID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(models.Definition{Nodes: []models.Node{{ID: "t1"}, {ID: "a1"}}}))

	err := Validate(models.Definition{Nodes: []models.Node{{ID: "t1"}, {ID: "t1"}, {}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
	assert.ErrorIs(t, err, ErrEmptyNodeID)
}

func TestLint(t *testing.T) {
	def := models.Definition{
		Nodes: []models.Node{
			{ID: "t1", Type: nodetypes.TypeStageEntered, Config: map[string]any{}},
			{ID: "a1", Type: nodetypes.TypeWebhook, Config: map[string]any{}},
			{ID: "a2", Type: "crm.unknown"},
		},
		Edges: []models.Edge{
			{From: "t1", To: "a1"},
			{From: "a1", To: "ghost"},
			{From: "", To: "a2"},
		},
	}

	warnings := Lint(def, nodetypes.Default())

	assert.Contains(t, warnings, `node a2: unknown type "crm.unknown"`)
	assert.Contains(t, warnings, `edge 1: unknown target node "ghost"`)
	assert.Contains(t, warnings, "edge 2: missing endpoint")
	assert.NotContains(t, warnings, "definition has no trigger node")

	var schemaWarning bool
	for _, w := range warnings {
		if regexp.MustCompile(`^node a1: .*url`).MatchString(w) {
			schemaWarning = true
		}
	}

	assert.True(t, schemaWarning, "expected a schema warning for a1, got %v", warnings)
}

func TestLint_NoTrigger(t *testing.T) {
	warnings := Lint(models.Definition{Nodes: []models.Node{{ID: "a1", Type: nodetypes.TypeLog, Config: map[string]any{"message": "x"}}}}, nodetypes.Default())
	assert.Equal(t, []string{"definition has no trigger node"}, warnings)
}
