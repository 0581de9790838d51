package models

import "time"

// RunStatus is the lifecycle state of a persisted automation run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run will not change anymore.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// SubjectTypeJob is the subject type of runs triggered by workflow jobs.
const SubjectTypeJob = "workflow_job"

// AutomationRun records one triggered execution of a published version.
type AutomationRun struct {
	ID           string     `json:"id"`
	AutomationID string     `json:"automation_id"`
	Version      int        `json:"version"`
	TenantID     string     `json:"tenant_id,omitempty"`
	SubjectType  string     `json:"subject_type"`
	SubjectID    string     `json:"subject_id"`
	EventKey     string     `json:"event_key"`
	EventID      string     `json:"event_id,omitempty"`
	Status       RunStatus  `json:"status"`
	PendingNodes int        `json:"pending_nodes"`
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	NodeRuns []*AutomationNodeRun `json:"node_runs,omitempty"`
}

// AutomationNodeRun records one node visited during a run.
type AutomationNodeRun struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Status     NodeStatus     `json:"status"`
	Attempts   int            `json:"attempts"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}
