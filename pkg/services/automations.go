package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/persistence"
)

const minNameLength = 3

// Automations manages automations, their versions and their event triggers.
type Automations struct {
	persistence persistence.Persistence
	types       *nodetypes.Registry
	logger      *slog.Logger
}

func NewAutomations(p persistence.Persistence, types *nodetypes.Registry, logger *slog.Logger) *Automations {
	return &Automations{
		persistence: p,
		types:       types,
		logger:      logger.With("module", "automations"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Automations) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

type ListAutomationsRequest struct {
	TenantID string
	Enabled  *bool
	Limit    int
	Offset   int
}

func (s *Automations) List(ctx context.Context, req ListAutomationsRequest) (*persistence.AutomationListResult, error) {
	if req.Offset < 0 {
		return nil, NewValidationError("List", "invalid_offset", "offset must not be negative", ErrInvalidRequest)
	}

	result, err := s.persistence.AutomationRepository().List(ctx, persistence.ListAutomationsOptions{
		TenantID: req.TenantID,
		Enabled:  req.Enabled,
		Limit:    persistence.NormalizeLimit(req.Limit),
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return result, nil
}

// AutomationDetail is an automation with its published definition and triggers.
type AutomationDetail struct {
	*models.Automation

	Definition *models.Definition          `json:"definition,omitempty"`
	Triggers   []*models.AutomationTrigger `json:"triggers"`
	// Warnings are non-blocking definition problems found on save.
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Automations) Get(ctx context.Context, id string) (*AutomationDetail, error) {
	repo := s.persistence.AutomationRepository()

	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AutomationDetail{Automation: a}

	if a.HasPublishedVersion() {
		v, err := repo.GetVersion(ctx, id, *a.PublishedVersion)
		if err != nil {
			return nil, err
		}

		detail.Definition = &v.Definition
	}

	detail.Triggers, err = repo.ListTriggers(ctx, id)
	if err != nil {
		return nil, err
	}

	return detail, nil
}

type CreateAutomationRequest struct {
	TenantID    string
	Name        string
	Description string
	// Enabled defaults to true.
	Enabled   *bool
	CreatedBy string
	Payload   definition.FormPayload
}

// Create stores the automation with its definition as version 1, publishes it
// and derives its triggers.
func (s *Automations) Create(ctx context.Context, req CreateAutomationRequest) (*AutomationDetail, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < minNameLength {
		return nil, NewValidationError("Create", "invalid_name", "name must have at least 3 characters", ErrInvalidRequest)
	}

	def, err := s.buildDefinition("Create", req.Payload)
	if err != nil {
		return nil, err
	}

	a := &models.Automation{
		TenantID:    req.TenantID,
		Name:        name,
		Description: req.Description,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}

	repo := s.persistence.AutomationRepository()

	if err := repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	v, err := repo.CreateVersion(ctx, a.ID, def, req.CreatedBy)
	if err != nil {
		return nil, s.rollbackCreate(ctx, a.ID, fmt.Errorf("failed to create automation version: %w", err))
	}

	if err := s.publish(ctx, a, v); err != nil {
		return nil, s.rollbackCreate(ctx, a.ID, err)
	}

	s.logger.InfoContext(ctx, "automation created", "automation_id", a.ID, "version", v.Version)

	return s.detailWithWarnings(ctx, a.ID, def)
}

// rollbackCreate removes a half-created automation so none is left without a
// published version. It returns cause, joined with the delete error if any.
func (s *Automations) rollbackCreate(ctx context.Context, id string, cause error) error {
	if err := s.persistence.AutomationRepository().Delete(context.WithoutCancel(ctx), id); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove partially created automation", "automation_id", id, "error", err)

		return errors.Join(cause, fmt.Errorf("failed to remove automation %s: %w", id, err))
	}

	return cause
}

type UpdateAutomationRequest struct {
	Name        *string
	Description *string
	Enabled     *bool
	CreatedBy   string
	// Payload, when set, becomes a new version.
	Payload *definition.FormPayload
	// Publish defaults to true.
	Publish *bool
}

func (s *Automations) Update(ctx context.Context, id string, req UpdateAutomationRequest) (*AutomationDetail, error) {
	repo := s.persistence.AutomationRepository()

	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < minNameLength {
			return nil, NewValidationError("Update", "invalid_name", "name must have at least 3 characters", ErrInvalidRequest)
		}

		a.Name = name
	}

	if req.Description != nil {
		a.Description = *req.Description
	}

	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}

	var def *models.Definition

	if req.Payload != nil {
		built, err := s.buildDefinition("Update", *req.Payload)
		if err != nil {
			return nil, err
		}

		def = &built
	}

	if err := repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	if def == nil {
		return s.Get(ctx, id)
	}

	v, err := repo.CreateVersion(ctx, id, *def, req.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation version: %w", err)
	}

	if req.Publish == nil || *req.Publish {
		if err := s.publish(ctx, a, v); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "automation updated", "automation_id", id, "version", v.Version)

	return s.detailWithWarnings(ctx, id, *def)
}

// Toggle flips the enabled flag.
func (s *Automations) Toggle(ctx context.Context, id string) (*models.Automation, error) {
	repo := s.persistence.AutomationRepository()

	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.Enabled = !a.Enabled

	if err := repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	return a, nil
}

func (s *Automations) Versions(ctx context.Context, id string) ([]*models.AutomationVersion, error) {
	return s.persistence.AutomationRepository().ListVersions(ctx, id)
}

func (s *Automations) Version(ctx context.Context, id string, version int) (*models.AutomationVersion, error) {
	return s.persistence.AutomationRepository().GetVersion(ctx, id, version)
}

// Publish points the automation at an existing version and re-derives its
// triggers from that version's trigger nodes.
func (s *Automations) Publish(ctx context.Context, id string, version int) (*AutomationDetail, error) {
	repo := s.persistence.AutomationRepository()

	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := repo.GetVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, a, v); err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *Automations) Triggers(ctx context.Context, id string) ([]*models.AutomationTrigger, error) {
	return s.persistence.AutomationRepository().ListTriggers(ctx, id)
}

func (s *Automations) ToggleTrigger(ctx context.Context, id, triggerID string) (*models.AutomationTrigger, error) {
	repo := s.persistence.AutomationRepository()

	t, err := repo.GetTrigger(ctx, id, triggerID)
	if err != nil {
		return nil, err
	}

	t.Enabled = !t.Enabled

	if err := repo.SaveTrigger(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	return t, nil
}

func (s *Automations) buildDefinition(op string, payload definition.FormPayload) (models.Definition, error) {
	def := definition.Build(payload)

	if err := definition.Validate(def); err != nil {
		return models.Definition{}, &ServiceError{
			Op:      op,
			Code:    "invalid_definition",
			Message: err.Error(),
			Err:     fmt.Errorf("%w: %w", ErrInvalidDefinition, err),
		}
	}

	return def, nil
}

func (s *Automations) publish(ctx context.Context, a *models.Automation, v *models.AutomationVersion) error {
	repo := s.persistence.AutomationRepository()

	if err := repo.SetPublishedVersion(ctx, a.ID, v.Version); err != nil {
		return fmt.Errorf("failed to publish version %d: %w", v.Version, err)
	}

	a.PublishedVersion = &v.Version

	existing, err := repo.ListTriggers(ctx, a.ID)
	if err != nil {
		return err
	}

	triggers := DeriveTriggers(s.types, a.ID, v.Definition, existing)

	if err := repo.ReplaceTriggers(ctx, a.ID, triggers); err != nil {
		return fmt.Errorf("failed to replace triggers: %w", err)
	}

	return nil
}

func (s *Automations) detailWithWarnings(ctx context.Context, id string, def models.Definition) (*AutomationDetail, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail.Warnings = definition.Lint(def, s.types)

	return detail, nil
}

// DeriveTriggers builds one trigger per trigger node whose type listens on an
// event. A trigger already bound to the same node and event keeps its ID and
// enabled flag.
func DeriveTriggers(types *nodetypes.Registry, automationID string, def models.Definition, existing []*models.AutomationTrigger) []*models.AutomationTrigger {
	previous := make(map[string]*models.AutomationTrigger, len(existing))
	for _, t := range existing {
		previous[t.NodeID+"|"+t.EventKey] = t
	}

	triggers := make([]*models.AutomationTrigger, 0)

	for _, n := range def.Nodes {
		if types.Category(n.Type) != models.CategoryTypeTrigger {
			continue
		}

		eventKey, ok := types.EventKeyForTrigger(n.Type)
		if !ok {
			continue
		}

		t := &models.AutomationTrigger{
			AutomationID: automationID,
			NodeID:       n.ID,
			EventKey:     eventKey,
			WorkflowID:   configString(n.Config, "workflow_id"),
			StageID:      configString(n.Config, "stage_id"),
			Enabled:      true,
		}

		if prev, found := previous[n.ID+"|"+eventKey]; found {
			t.ID = prev.ID
			t.Enabled = prev.Enabled
			t.CreatedAt = prev.CreatedAt
		}

		triggers = append(triggers, t)
	}

	return triggers
}

func configString(config map[string]any, key string) string {
	switch v := config[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
