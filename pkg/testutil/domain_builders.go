package testutil

import (
	"time"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestJob creates a job with a contact and an invoice.
func CreateTestJob(overrides ...func(*models.Job)) *models.Job {
	job := &models.Job{
		ID:         uuid.New().String(),
		WorkflowID: "wf-1",
		StageID:    "st-2",
		Title:      "Reparación de caldera",
		Priority:   "alta",
		DueDate:    "2026-11-02",
		Contact: &models.Contact{
			ID:             uuid.New().String(),
			Name:           "Ana García",
			Number:         "+34600111222",
			Email:          "ana@example.com",
			TelegramChatID: "98765",
		},
		Invoice: &models.Invoice{ID: uuid.New().String(), Number: "F-2026-001", TotalAmount: 250},
	}

	for _, override := range overrides {
		override(job)
	}

	return job
}

// CreateTestContext wraps job in an automation context for a stage change.
func CreateTestContext(job *models.Job) *automation.Context {
	return &automation.Context{
		Job:       job,
		FromStage: &models.Stage{ID: "st-1", WorkflowID: job.WorkflowID, Name: "Nuevo"},
		ToStage:   &models.Stage{ID: job.StageID, WorkflowID: job.WorkflowID, Name: "En curso"},
		Actor:     &models.User{ID: "u-1", Name: "Luis"},
		EventKey:  "workflow.job.stage_changed",
		EventID:   uuid.New().String(),
	}
}

// CreateTestAutomation creates an enabled automation without a published version.
func CreateTestAutomation(overrides ...func(*models.Automation)) *models.Automation {
	now := time.Now().UTC()
	a := &models.Automation{
		ID:        uuid.New().String(),
		TenantID:  "tenant-1",
		Name:      "Avisar al cliente",
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(a)
	}

	return a
}
