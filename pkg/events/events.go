// Package events defines the domain events automations react to and the
// notifications they publish.
package events

import (
	"time"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
)

type EventType string

// Topic carries every stageflow event.
const Topic = "stageflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JobStageChangedEvent       EventType = "workflow.job.stage_changed"
	JobCreatedEvent            EventType = "workflow.job.created"
	AutomationRunFinishedEvent EventType = "automation.run.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps an event of the given type.
func NewBaseEvent(id string, eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// JobStageChanged is emitted by the host application when a job enters a stage.
type JobStageChanged struct {
	BaseEvent

	JobID       string `json:"job_id"       validate:"required"`
	WorkflowID  string `json:"workflow_id"`
	FromStageID string `json:"from_stage_id,omitempty"`
	ToStageID   string `json:"to_stage_id"  validate:"required"`
	ActorID     string `json:"actor_id,omitempty"`
}

func (e JobStageChanged) GetType() EventType {
	return JobStageChangedEvent
}

// Subject converts the event into the run subject.
func (e JobStageChanged) Subject() Subject {
	return Subject{
		JobID:       e.JobID,
		FromStageID: e.FromStageID,
		ToStageID:   e.ToStageID,
		ActorID:     e.ActorID,
		EventKey:    string(JobStageChangedEvent),
		EventID:     e.ID,
	}
}

// JobCreated is emitted when a job is created in its first stage.
type JobCreated struct {
	BaseEvent

	JobID      string `json:"job_id"      validate:"required"`
	WorkflowID string `json:"workflow_id"`
	StageID    string `json:"stage_id"`
	ActorID    string `json:"actor_id,omitempty"`
}

func (e JobCreated) GetType() EventType {
	return JobCreatedEvent
}

func (e JobCreated) Subject() Subject {
	return Subject{
		JobID:     e.JobID,
		ToStageID: e.StageID,
		ActorID:   e.ActorID,
		EventKey:  string(JobCreatedEvent),
		EventID:   e.ID,
	}
}

// AutomationRunFinished is published once a live run reaches a terminal status.
type AutomationRunFinished struct {
	BaseEvent

	RunID        string           `json:"run_id"`
	AutomationID string           `json:"automation_id"`
	Status       models.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
}

func (e AutomationRunFinished) GetType() EventType {
	return AutomationRunFinishedEvent
}

// Subject identifies what a live run acts on: the job, the stage transition
// and the acting user, plus the event that caused it.
type Subject struct {
	JobID       string `json:"job_id"`
	FromStageID string `json:"from_stage_id,omitempty"`
	ToStageID   string `json:"to_stage_id,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	EventKey    string `json:"event_key,omitempty"`
	EventID     string `json:"event_id,omitempty"`
}

// Decorate copies the event identifiers onto an automation context.
func (s Subject) Decorate(actx *automation.Context) *automation.Context {
	actx.EventKey = s.EventKey
	actx.EventID = s.EventID

	return actx
}
