// Package persistence provides the storage abstraction for automations, their
// runs and the workflow jobs automations act on.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/stageflow/pkg/models"
)

type Persistence interface {
	AutomationRepository() AutomationRepository
	RunRepository() RunRepository
	JobRepository() JobRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListAutomationsOptions filters and paginates automation listings.
type ListAutomationsOptions struct {
	TenantID string
	Enabled  *bool
	Limit    int
	Offset   int
}

type AutomationListResult struct {
	Automations []*models.Automation `json:"automations"`
	TotalCount  int64                `json:"total_count"`
	HasNextPage bool                 `json:"has_next_page"`
}

type AutomationRepository interface {
	List(ctx context.Context, opts ListAutomationsOptions) (*AutomationListResult, error)
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	// Save inserts or updates an automation, assigning an ID when empty.
	Save(ctx context.Context, automation *models.Automation) error
	// Delete removes an automation with its versions, triggers and runs.
	Delete(ctx context.Context, id string) error

	// CreateVersion appends a new immutable version numbered one past the latest.
	CreateVersion(ctx context.Context, automationID string, def models.Definition, createdBy string) (*models.AutomationVersion, error)
	GetVersion(ctx context.Context, automationID string, version int) (*models.AutomationVersion, error)
	// ListVersions returns versions newest first.
	ListVersions(ctx context.Context, automationID string) ([]*models.AutomationVersion, error)
	SetPublishedVersion(ctx context.Context, automationID string, version int) error

	ListTriggers(ctx context.Context, automationID string) ([]*models.AutomationTrigger, error)
	GetTrigger(ctx context.Context, automationID, triggerID string) (*models.AutomationTrigger, error)
	SaveTrigger(ctx context.Context, trigger *models.AutomationTrigger) error
	// ReplaceTriggers swaps the whole trigger set of an automation.
	ReplaceTriggers(ctx context.Context, automationID string, triggers []*models.AutomationTrigger) error
	// FindTriggers returns enabled triggers of enabled automations matching the
	// event. Triggers without workflow or stage match any.
	FindTriggers(ctx context.Context, eventKey, workflowID, stageID string) ([]*models.AutomationTrigger, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *models.AutomationRun) error
	UpdateRun(ctx context.Context, run *models.AutomationRun) error
	// GetRun returns the run with its node runs.
	GetRun(ctx context.Context, id string) (*models.AutomationRun, error)
	// ListRuns returns runs newest first, without node runs.
	ListRuns(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error)
	SaveNodeRun(ctx context.Context, nodeRun *models.AutomationNodeRun) error
	ListNodeRuns(ctx context.Context, runID string) ([]*models.AutomationNodeRun, error)
	// ListStaleRuns returns queued or running runs created before the given time.
	ListStaleRuns(ctx context.Context, before time.Time) ([]*models.AutomationRun, error)
}

// JobRepository reads and moves the workflow records owned by the host
// application. The save methods exist for seeding and tests.
type JobRepository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetStage(ctx context.Context, id string) (*models.Stage, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	MoveJob(ctx context.Context, jobID, stageID string) (*models.Job, error)

	SaveJob(ctx context.Context, job *models.Job) error
	SaveStage(ctx context.Context, stage *models.Stage) error
	SaveUser(ctx context.Context, user *models.User) error
}

// DefaultLimit applies when a listing asks for no or too many rows.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizeLimit clamps limit to (0, MaxLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return DefaultLimit
	}

	return limit
}
