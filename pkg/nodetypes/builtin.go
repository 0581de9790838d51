package nodetypes

import "github.com/dukex/stageflow/pkg/models"

// Built-in node types.
const (
	TypeStageEntered   = "workflow.stage_entered"
	TypeJobCreated     = "workflow.job_created"
	TypeCondition      = "logic.condition"
	TypeWebhook        = "http.webhook"
	TypeTelegram       = "telegram.send_message"
	TypeWhatsApp       = "whatsapp.send_template"
	TypeMoveJob        = "workflow.move_job"
	TypeLog            = "util.log"
	EventStageChanged  = "workflow.job.stage_changed"
	EventJobCreated    = "workflow.job.created"
	DefaultActionType  = TypeWebhook
	DefaultTriggerType = TypeStageEntered
)

// Default returns a registry holding the built-in node types.
func Default() *Registry {
	return NewRegistry(Builtins()...)
}

func Builtins() []Descriptor {
	return []Descriptor{
		{
			Type:        TypeStageEntered,
			Category:    models.CategoryTypeTrigger,
			Label:       "Trabajo entra en etapa",
			Description: "Starts the automation when a job enters the configured stage.",
			EventKey:    EventStageChanged,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"workflow_id": map[string]any{"type": "string"},
					"stage_id":    map[string]any{"type": "string"},
				},
			},
		},
		{
			Type:        TypeJobCreated,
			Category:    models.CategoryTypeTrigger,
			Label:       "Trabajo creado",
			Description: "Starts the automation when a job is created in the workflow.",
			EventKey:    EventJobCreated,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"workflow_id": map[string]any{"type": "string"},
				},
			},
		},
		{
			Type:        TypeCondition,
			Category:    models.CategoryTypeLogic,
			Label:       "Condición",
			Description: "Routes execution through the true or false output.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field":    map[string]any{"type": "string"},
					"operator": map[string]any{"type": "string", "enum": operatorEnum()},
					"match":    map[string]any{"type": "string", "enum": []any{"all", "any"}},
					"rules": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"field"},
							"properties": map[string]any{
								"field":    map[string]any{"type": "string"},
								"operator": map[string]any{"type": "string", "enum": operatorEnum()},
							},
						},
					},
				},
				"anyOf": []any{
					map[string]any{"required": []any{"field"}},
					map[string]any{"required": []any{"rules"}},
				},
			},
		},
		{
			Type:        TypeWebhook,
			Category:    models.CategoryTypeAction,
			Label:       "Webhook HTTP",
			Description: "Sends an HTTP request to an external URL.",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"url"},
				"properties": map[string]any{
					"url":             map[string]any{"type": "string", "minLength": 1},
					"method":          map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"}},
					"headers":         map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
					"body":            map[string]any{"type": "string"},
					"timeout_seconds": map[string]any{"type": "number", "minimum": 1},
				},
			},
		},
		{
			Type:        TypeTelegram,
			Category:    models.CategoryTypeAction,
			Label:       "Mensaje de Telegram",
			Description: "Sends a Telegram message through the Bot API.",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"text"},
				"properties": map[string]any{
					"chat_id":    map[string]any{"type": "string"},
					"text":       map[string]any{"type": "string", "minLength": 1},
					"parse_mode": map[string]any{"type": "string", "enum": []any{"", "HTML", "Markdown", "MarkdownV2"}},
					"bot_token":  map[string]any{"type": "string"},
				},
			},
		},
		{
			Type:        TypeWhatsApp,
			Category:    models.CategoryTypeAction,
			Label:       "Plantilla de WhatsApp",
			Description: "Sends an approved WhatsApp Cloud API template message.",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"template"},
				"properties": map[string]any{
					"to":         map[string]any{"type": "string"},
					"template":   map[string]any{"type": "string", "minLength": 1},
					"language":   map[string]any{"type": "string"},
					"parameters": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		{
			Type:        TypeMoveJob,
			Category:    models.CategoryTypeAction,
			Label:       "Mover trabajo",
			Description: "Moves the job to another stage of its workflow.",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"stage_id"},
				"properties": map[string]any{
					"stage_id": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
		{
			Type:        TypeLog,
			Category:    models.CategoryTypeAction,
			Label:       "Registrar mensaje",
			Description: "Writes a rendered message to the automation log.",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"message"},
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
					"level":   map[string]any{"type": "string", "enum": []any{"debug", "info", "warn", "error"}},
				},
			},
		},
	}
}

func operatorEnum() []any {
	return []any{"equals", "not_equals", "contains", "not_contains", "empty", "not_empty", "gt", "gte", "lt", "lte", "in"}
}
