// Package models defines the automation domain: automations, their immutable
// versions, event triggers, graph definitions and the run audit trail.
package models

import "time"

// Automation is a named, toggleable trigger-to-action graph owned by a tenant.
// PublishedVersion points at the AutomationVersion that live and test runs execute.
type Automation struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Name             string    `json:"name"              validate:"required,min=3"`
	Description      string    `json:"description"`
	Enabled          bool      `json:"enabled"`
	PublishedVersion *int      `json:"published_version,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasPublishedVersion reports whether a version has been published.
func (a *Automation) HasPublishedVersion() bool {
	return a.PublishedVersion != nil && *a.PublishedVersion > 0
}

// AutomationVersion is an append-only snapshot of a definition. It is never
// mutated after creation; every save produces the next version number.
type AutomationVersion struct {
	AutomationID string     `json:"automation_id"`
	Version      int        `json:"version"`
	Definition   Definition `json:"definition"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AutomationTrigger binds an automation to a domain event key. Stage-entry
// triggers also carry the workflow/stage pair they listen on.
type AutomationTrigger struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	NodeID       string    `json:"node_id"`
	EventKey     string    `json:"event_key"`
	WorkflowID   string    `json:"workflow_id,omitempty"`
	StageID      string    `json:"stage_id,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Matches reports whether the trigger listens on the given event for the given
// workflow and stage. Empty workflow or stage on the trigger act as wildcards.
func (t *AutomationTrigger) Matches(eventKey, workflowID, stageID string) bool {
	if t.EventKey != eventKey {
		return false
	}

	if t.WorkflowID != "" && t.WorkflowID != workflowID {
		return false
	}

	if t.StageID != "" && t.StageID != stageID {
		return false
	}

	return true
}
