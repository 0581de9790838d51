package web

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/registry"
	"github.com/dukex/stageflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	automations *services.Automations
	runs        *services.Runs
	nodeTypes   *nodetypes.Registry
	runners     *registry.Registry
	eventBus    eventbus.EventBus
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	automations *services.Automations,
	runs *services.Runs,
	nodeTypes *nodetypes.Registry,
	runners *registry.Registry,
	eventBus eventbus.EventBus,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		automations: automations,
		runs:        runs,
		nodeTypes:   nodeTypes,
		runners:     runners,
		eventBus:    eventBus,
		validator:   validator,
		logger:      logger.With("module", "api"),
	}
}

// RegisterRoutes mounts every API route on router.
func RegisterRoutes(router fiber.Router, h *APIHandlers) {
	router.Get("/health", h.HealthCheck)
	router.Get("/node-types", h.GetNodeTypes)

	a := router.Group("/automations")
	a.Get("/", h.ListAutomations)
	a.Post("/", h.CreateAutomation)
	a.Get("/:id", h.GetAutomation)
	a.Patch("/:id", h.UpdateAutomation)
	a.Post("/:id/toggle", h.ToggleAutomation)
	a.Get("/:id/versions", h.ListVersions)
	a.Get("/:id/versions/:version", h.GetVersion)
	a.Post("/:id/versions/:version/publish", h.PublishVersion)
	a.Get("/:id/triggers", h.ListTriggers)
	a.Post("/:id/triggers/:triggerId/toggle", h.ToggleTrigger)
	a.Post("/:id/test", h.TestAutomation)
	a.Post("/:id/runs", h.ExecuteAutomation)
	a.Get("/:id/runs", h.ListRuns)

	router.Get("/runs/:runId", h.GetRun)

	router.Post("/events/job-stage-changed", h.PublishJobStageChanged)
	router.Post("/events/job-created", h.PublishJobCreated)
}

// HealthCheck reports persistence and runner registry health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.automations.HealthCheck(c.Context())

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}

	runners := "ok"
	if err := h.runners.HealthCheck(); err != nil {
		runners = err.Error()
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"persistence": message,
		"runners":     runners,
		"healthy":     status == fiber.StatusOK,
	})
}

// GetNodeTypes returns the node palette grouped by category.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.nodeTypes.Grouped())
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, err.Error())
	}

	offset, err := queryInt(c, "offset")
	if err != nil {
		return badRequest(c, err.Error())
	}

	req := services.ListAutomationsRequest{
		TenantID: c.Query("tenant_id"),
		Limit:    limit,
		Offset:   offset,
	}

	if raw := c.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "enabled must be a boolean")
		}

		req.Enabled = &enabled
	}

	result, err := h.automations.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	detail, err := h.automations.Create(c.Context(), services.CreateAutomationRequest{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
		CreatedBy:   req.CreatedBy,
		Payload:     req.FormPayload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	detail, err := h.automations.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req UpdateAutomationRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	detail, err := h.automations.Update(c.Context(), c.Params("id"), services.UpdateAutomationRequest{
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
		CreatedBy:   req.CreatedBy,
		Payload:     req.Payload(),
		Publish:     req.Publish,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) ToggleAutomation(c fiber.Ctx) error {
	a, err := h.automations.Toggle(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(a)
}

func (h *APIHandlers) ListVersions(c fiber.Ctx) error {
	versions, err := h.automations.Versions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(versions)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return badRequest(c, "version must be a number")
	}

	v, err := h.automations.Version(c.Context(), c.Params("id"), version)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(v)
}

func (h *APIHandlers) PublishVersion(c fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return badRequest(c, "version must be a number")
	}

	detail, err := h.automations.Publish(c.Context(), c.Params("id"), version)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) ListTriggers(c fiber.Ctx) error {
	triggers, err := h.automations.Triggers(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(triggers)
}

func (h *APIHandlers) ToggleTrigger(c fiber.Ctx) error {
	trigger, err := h.automations.ToggleTrigger(c.Context(), c.Params("id"), c.Params("triggerId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trigger)
}

// TestAutomation walks the published version for a job and returns the
// per-node results without recording a run.
func (h *APIHandlers) TestAutomation(c fiber.Ctx) error {
	var req TestRunRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.runs.TestRun(c.Context(), c.Params("id"), services.TestRunRequest{
		JobID:       req.JobID,
		DryRun:      req.DryRun,
		FromStageID: req.FromStageID,
		ToStageID:   req.ToStageID,
		ActorID:     req.ActorID,
		EventKey:    req.EventKey,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(response)
}

// ExecuteAutomation runs the published version for a job and records the run.
func (h *APIHandlers) ExecuteAutomation(c fiber.Ctx) error {
	var req ExecuteRunRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runs.Execute(c.Context(), c.Params("id"), events.Subject{
		JobID:       req.JobID,
		FromStageID: req.FromStageID,
		ToStageID:   req.ToStageID,
		ActorID:     req.ActorID,
		EventKey:    string(events.JobStageChangedEvent),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, err.Error())
	}

	offset, err := queryInt(c, "offset")
	if err != nil {
		return badRequest(c, err.Error())
	}

	runs, err := h.runs.List(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(runs)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.runs.Get(c.Context(), c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

// PublishJobStageChanged queues a stage change for the workers.
func (h *APIHandlers) PublishJobStageChanged(c fiber.Ctx) error {
	var req JobStageChangedRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.JobStageChanged{
		BaseEvent:   events.NewBaseEvent(h.eventBus.GenerateID(), events.JobStageChangedEvent),
		JobID:       req.JobID,
		WorkflowID:  req.WorkflowID,
		FromStageID: req.FromStageID,
		ToStageID:   req.ToStageID,
		ActorID:     req.ActorID,
	}
	event.TenantID = req.TenantID

	return h.accept(c, req.JobID, event, event.ID)
}

// PublishJobCreated queues a job creation for the workers.
func (h *APIHandlers) PublishJobCreated(c fiber.Ctx) error {
	var req JobCreatedRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.JobCreated{
		BaseEvent:  events.NewBaseEvent(h.eventBus.GenerateID(), events.JobCreatedEvent),
		JobID:      req.JobID,
		WorkflowID: req.WorkflowID,
		StageID:    req.StageID,
		ActorID:    req.ActorID,
	}
	event.TenantID = req.TenantID

	return h.accept(c, req.JobID, event, event.ID)
}

func (h *APIHandlers) accept(c fiber.Ctx, key string, event eventbus.Event, eventID string) error {
	if err := h.publish(c.Context(), key, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EventAcceptedResponse{
		EventID: eventID,
		Type:    string(event.GetType()),
	})
}

func (h *APIHandlers) publish(ctx context.Context, key string, event eventbus.Event) error {
	if h.eventBus == nil {
		return fmt.Errorf("event bus not configured")
	}

	if err := h.eventBus.Publish(ctx, key, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish event", "type", event.GetType(), "error", err)

		return fmt.Errorf("failed to publish event: %w", err)
	}

	h.logger.InfoContext(ctx, "event published", "type", event.GetType(), "key", key)

	return nil
}

func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}

	return value, nil
}
