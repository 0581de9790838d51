package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeResult_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    NodeResult
	}{
		{
			name:    "output field",
			payload: `{"success":true,"output":{"branch":"false"}}`,
			want:    NodeResult{Success: true, Output: map[string]any{"branch": "false"}},
		},
		{
			name:    "legacy data field",
			payload: `{"success":true,"data":{"branch":"true"}}`,
			want:    NodeResult{Success: true, Output: map[string]any{"branch": "true"}},
		},
		{
			name:    "output wins over data",
			payload: `{"success":false,"output":{"a":1},"data":{"b":2}}`,
			want:    NodeResult{Success: false, Output: map[string]any{"a": float64(1)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got NodeResult
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeResult_MarshalUsesOutput(t *testing.T) {
	b, err := json.Marshal(Succeeded(map[string]any{"k": "v"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"output":{"k":"v"}}`, string(b))
}

func TestDefinition_CloneIsDeep(t *testing.T) {
	def := Definition{
		Nodes: []Node{{
			ID:   "a1",
			Type: "http.webhook",
			Config: map[string]any{
				"headers": map[string]any{"X-Key": "1"},
				"list":    []any{map[string]any{"k": "v"}},
			},
		}},
		Edges: []Edge{{From: "t1", To: "a1"}},
	}

	clone := def.Clone()
	clone.Nodes[0].Config["headers"].(map[string]any)["X-Key"] = "2"
	clone.Nodes[0].Config["list"].([]any)[0].(map[string]any)["k"] = "changed"
	clone.Edges[0].To = "a2"

	assert.Equal(t, "1", def.Nodes[0].Config["headers"].(map[string]any)["X-Key"])
	assert.Equal(t, "v", def.Nodes[0].Config["list"].([]any)[0].(map[string]any)["k"])
	assert.Equal(t, "a1", def.Edges[0].To)
}

func TestDefinition_Lookups(t *testing.T) {
	def := Definition{Nodes: []Node{
		{ID: "t1", Type: "workflow.stage_entered"},
		{ID: "a1", Type: "http.webhook"},
		{ID: "t2", Type: "workflow.stage_entered"},
	}}

	n, ok := def.NodeByID("a1")
	require.True(t, ok)
	assert.Equal(t, "http.webhook", n.Type)

	_, ok = def.NodeByID("missing")
	assert.False(t, ok)

	triggers := def.NodesOfType("workflow.stage_entered")
	require.Len(t, triggers, 2)
	assert.Equal(t, "t1", triggers[0].ID)
	assert.Equal(t, "t2", triggers[1].ID)
}

func TestAutomationTrigger_Matches(t *testing.T) {
	trigger := AutomationTrigger{EventKey: "workflow.job.stage_changed", WorkflowID: "wf1", StageID: "st2"}

	assert.True(t, trigger.Matches("workflow.job.stage_changed", "wf1", "st2"))
	assert.False(t, trigger.Matches("workflow.job.stage_changed", "wf1", "st3"))
	assert.False(t, trigger.Matches("workflow.job.stage_changed", "wf9", "st2"))
	assert.False(t, trigger.Matches("workflow.job.created", "wf1", "st2"))

	wildcard := AutomationTrigger{EventKey: "workflow.job.created"}
	assert.True(t, wildcard.Matches("workflow.job.created", "any", "thing"))
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, RunStatusQueued.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusSucceeded.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
}
