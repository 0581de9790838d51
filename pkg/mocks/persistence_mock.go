// Package mocks holds testify mocks of the persistence, event bus and run lock
// interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockAutomationRepository is a mock implementation of persistence.AutomationRepository interface.
type MockAutomationRepository struct {
	mock.Mock
}

func (m *MockAutomationRepository) List(ctx context.Context, opts persistence.ListAutomationsOptions) (*persistence.AutomationListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.AutomationListResult), args.Error(1)
}

func (m *MockAutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Automation), args.Error(1)
}

func (m *MockAutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	args := m.Called(ctx, automation)

	return args.Error(0)
}

func (m *MockAutomationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockAutomationRepository) CreateVersion(ctx context.Context, automationID string, def models.Definition, createdBy string) (*models.AutomationVersion, error) {
	args := m.Called(ctx, automationID, def, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationVersion), args.Error(1)
}

func (m *MockAutomationRepository) GetVersion(ctx context.Context, automationID string, version int) (*models.AutomationVersion, error) {
	args := m.Called(ctx, automationID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationVersion), args.Error(1)
}

func (m *MockAutomationRepository) ListVersions(ctx context.Context, automationID string) ([]*models.AutomationVersion, error) {
	args := m.Called(ctx, automationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationVersion), args.Error(1)
}

func (m *MockAutomationRepository) SetPublishedVersion(ctx context.Context, automationID string, version int) error {
	args := m.Called(ctx, automationID, version)

	return args.Error(0)
}

func (m *MockAutomationRepository) ListTriggers(ctx context.Context, automationID string) ([]*models.AutomationTrigger, error) {
	args := m.Called(ctx, automationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationTrigger), args.Error(1)
}

func (m *MockAutomationRepository) GetTrigger(ctx context.Context, automationID, triggerID string) (*models.AutomationTrigger, error) {
	args := m.Called(ctx, automationID, triggerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationTrigger), args.Error(1)
}

func (m *MockAutomationRepository) SaveTrigger(ctx context.Context, trigger *models.AutomationTrigger) error {
	args := m.Called(ctx, trigger)

	return args.Error(0)
}

func (m *MockAutomationRepository) ReplaceTriggers(ctx context.Context, automationID string, triggers []*models.AutomationTrigger) error {
	args := m.Called(ctx, automationID, triggers)

	return args.Error(0)
}

func (m *MockAutomationRepository) FindTriggers(ctx context.Context, eventKey, workflowID, stageID string) ([]*models.AutomationTrigger, error) {
	args := m.Called(ctx, eventKey, workflowID, stageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationTrigger), args.Error(1)
}

// MockRunRepository is a mock implementation of persistence.RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) CreateRun(ctx context.Context, run *models.AutomationRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockRunRepository) UpdateRun(ctx context.Context, run *models.AutomationRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*models.AutomationRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AutomationRun), args.Error(1)
}

func (m *MockRunRepository) ListRuns(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error) {
	args := m.Called(ctx, automationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationRun), args.Error(1)
}

func (m *MockRunRepository) SaveNodeRun(ctx context.Context, nodeRun *models.AutomationNodeRun) error {
	args := m.Called(ctx, nodeRun)

	return args.Error(0)
}

func (m *MockRunRepository) ListNodeRuns(ctx context.Context, runID string) ([]*models.AutomationNodeRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationNodeRun), args.Error(1)
}

func (m *MockRunRepository) ListStaleRuns(ctx context.Context, before time.Time) ([]*models.AutomationRun, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AutomationRun), args.Error(1)
}

// MockJobRepository is a mock implementation of persistence.JobRepository interface.
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) GetStage(ctx context.Context, id string) (*models.Stage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Stage), args.Error(1)
}

func (m *MockJobRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockJobRepository) MoveJob(ctx context.Context, jobID, stageID string) (*models.Job, error) {
	args := m.Called(ctx, jobID, stageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobRepository) SaveStage(ctx context.Context, stage *models.Stage) error {
	args := m.Called(ctx, stage)

	return args.Error(0)
}

func (m *MockJobRepository) SaveUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	automationRepo *MockAutomationRepository
	runRepo        *MockRunRepository
	jobRepo        *MockJobRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		automationRepo: &MockAutomationRepository{},
		runRepo:        &MockRunRepository{},
		jobRepo:        &MockJobRepository{},
	}
}

// GetMockAutomationRepository returns the underlying mock for setting up expectations.
func (m *MockPersistence) GetMockAutomationRepository() *MockAutomationRepository {
	return m.automationRepo
}

func (m *MockPersistence) GetMockRunRepository() *MockRunRepository {
	return m.runRepo
}

func (m *MockPersistence) GetMockJobRepository() *MockJobRepository {
	return m.jobRepo
}

func (m *MockPersistence) AutomationRepository() persistence.AutomationRepository {
	return m.automationRepo
}

func (m *MockPersistence) RunRepository() persistence.RunRepository {
	return m.runRepo
}

func (m *MockPersistence) JobRepository() persistence.JobRepository {
	return m.jobRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
