package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStageChanged_Subject(t *testing.T) {
	event := JobStageChanged{
		BaseEvent:   NewBaseEvent("evt-1", JobStageChangedEvent),
		JobID:       "job-1",
		WorkflowID:  "wf1",
		FromStageID: "st1",
		ToStageID:   "st2",
		ActorID:     "u1",
	}

	subject := event.Subject()
	assert.Equal(t, "job-1", subject.JobID)
	assert.Equal(t, "st1", subject.FromStageID)
	assert.Equal(t, "st2", subject.ToStageID)
	assert.Equal(t, "workflow.job.stage_changed", subject.EventKey)
	assert.Equal(t, "evt-1", subject.EventID)

	actx := subject.Decorate(&automation.Context{})
	assert.Equal(t, "evt-1", actx.EventID)
	assert.Equal(t, "workflow.job.stage_changed", actx.EventKey)
}

func TestJobCreated_SubjectHasNoFromStage(t *testing.T) {
	subject := JobCreated{BaseEvent: NewBaseEvent("evt-2", JobCreatedEvent), JobID: "job-2", StageID: "st1"}.Subject()

	assert.Empty(t, subject.FromStageID)
	assert.Equal(t, "st1", subject.ToStageID)
	assert.Equal(t, "workflow.job.created", subject.EventKey)
}

func TestEvents_JSONShape(t *testing.T) {
	event := JobStageChanged{
		BaseEvent: NewBaseEvent("evt-1", JobStageChangedEvent),
		JobID:     "job-1",
		ToStageID: "st2",
	}

	b, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, "evt-1", raw["id"])
	assert.Equal(t, "workflow.job.stage_changed", raw["type"])
	assert.Equal(t, "job-1", raw["job_id"])
	assert.NotContains(t, raw, "from_stage_id")
	assert.Equal(t, JobStageChangedEvent, event.GetType())
}
