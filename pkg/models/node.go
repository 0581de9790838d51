package models

import "encoding/json"

// CategoryType is the role of a node type inside a graph.
type CategoryType string

const (
	CategoryTypeTrigger CategoryType = "trigger"
	CategoryTypeAction  CategoryType = "action"
	CategoryTypeLogic   CategoryType = "logic"
)

// NodeStatus is the state of one node visit. Only running is not terminal.
type NodeStatus string

const (
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSkipped NodeStatus = "skipped"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusDryRun  NodeStatus = "dry_run"
)

// NodeResult is what every runner returns. Output is the canonical payload
// field; "data" is accepted on decode for payloads written by older clients.
type NodeResult struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output"`
}

func (r *NodeResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		Success bool           `json:"success"`
		Output  map[string]any `json:"output"`
		Data    map[string]any `json:"data"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	r.Success = raw.Success
	r.Output = raw.Output

	if r.Output == nil {
		r.Output = raw.Data
	}

	return nil
}

// Succeeded builds a successful result.
func Succeeded(output map[string]any) NodeResult {
	if output == nil {
		output = map[string]any{}
	}

	return NodeResult{Success: true, Output: output}
}

// Failed builds an unsuccessful result carrying an error message.
func Failed(message string) NodeResult {
	return NodeResult{Success: false, Output: map[string]any{"error": message}}
}

// StepResult is one entry of a traversal, in visit order.
type StepResult struct {
	NodeID string         `json:"node_id"`
	Type   string         `json:"type"`
	Status NodeStatus     `json:"status"`
	Output map[string]any `json:"output"`
}
