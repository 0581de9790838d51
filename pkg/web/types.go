// Package web provides HTTP request and response types for the automation API.
package web

import (
	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/models"
)

// CreateAutomationRequest is the automation form. The graph comes either as
// nodes/edges from the visual builder or as the legacy actions list.
type CreateAutomationRequest struct {
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled,omitempty"`
	CreatedBy   string `json:"created_by"`

	definition.FormPayload
}

// UpdateAutomationRequest supports partial updates. Sending nodes, edges or
// actions creates a new version, published unless publish is false.
type UpdateAutomationRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Publish     *bool   `json:"publish,omitempty"`
	CreatedBy   string  `json:"created_by"`

	Nodes      []models.Node             `json:"nodes,omitempty"`
	Edges      []models.Edge             `json:"edges,omitempty"`
	WorkflowID string                    `json:"workflow_id,omitempty"`
	StageID    string                    `json:"stage_id,omitempty"`
	Actions    []definition.LegacyAction `json:"actions,omitempty"`
}

// Payload returns the definition payload, or nil when the request carries no graph.
func (r UpdateAutomationRequest) Payload() *definition.FormPayload {
	if r.Nodes == nil && r.Edges == nil && r.Actions == nil {
		return nil
	}

	return &definition.FormPayload{
		Nodes:      r.Nodes,
		Edges:      r.Edges,
		WorkflowID: r.WorkflowID,
		StageID:    r.StageID,
		Actions:    r.Actions,
	}
}

type TestRunRequest struct {
	JobID       string `json:"job_id"        validate:"required"`
	DryRun      bool   `json:"dry_run"`
	FromStageID string `json:"from_stage_id"`
	ToStageID   string `json:"to_stage_id"`
	ActorID     string `json:"actor_id"`
	EventKey    string `json:"event_key"     validate:"omitempty,oneof=workflow.job.stage_changed workflow.job.created"`
}

type ExecuteRunRequest struct {
	JobID       string `json:"job_id"        validate:"required"`
	FromStageID string `json:"from_stage_id"`
	ToStageID   string `json:"to_stage_id"`
	ActorID     string `json:"actor_id"`
}

type JobStageChangedRequest struct {
	TenantID    string `json:"tenant_id"`
	JobID       string `json:"job_id"        validate:"required"`
	WorkflowID  string `json:"workflow_id"`
	FromStageID string `json:"from_stage_id"`
	ToStageID   string `json:"to_stage_id"   validate:"required"`
	ActorID     string `json:"actor_id"`
}

type JobCreatedRequest struct {
	TenantID   string `json:"tenant_id"`
	JobID      string `json:"job_id"      validate:"required"`
	WorkflowID string `json:"workflow_id"`
	StageID    string `json:"stage_id"    validate:"required"`
	ActorID    string `json:"actor_id"`
}

// EventAcceptedResponse is returned when an event is queued for the workers.
type EventAcceptedResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}
