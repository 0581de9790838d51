package registry

import (
	"log/slog"
	"net/http"

	"github.com/dukex/stageflow/pkg/nodes/condition"
	lognode "github.com/dukex/stageflow/pkg/nodes/log"
	"github.com/dukex/stageflow/pkg/nodes/movejob"
	"github.com/dukex/stageflow/pkg/nodes/telegram"
	"github.com/dukex/stageflow/pkg/nodes/webhook"
	"github.com/dukex/stageflow/pkg/nodes/whatsapp"
	"github.com/dukex/stageflow/pkg/nodetypes"
)

// Dependencies are the collaborators of the built-in runners.
type Dependencies struct {
	HTTPClient *http.Client
	Jobs       movejob.Mover
	Logger     *slog.Logger
	Telegram   telegram.Options
	WhatsApp   whatsapp.Options
}

// RegisterDefaults registers the built-in runners. workflow.move_job is only
// registered when a job mover is available.
func (r *Registry) RegisterDefaults(deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = r.logger
	}

	r.Register(nodetypes.TypeCondition, condition.New())
	r.Register(nodetypes.TypeWebhook, webhook.New(deps.HTTPClient))
	r.Register(nodetypes.TypeTelegram, telegram.New(deps.HTTPClient, deps.Telegram))
	r.Register(nodetypes.TypeWhatsApp, whatsapp.New(deps.HTTPClient, deps.WhatsApp))
	r.Register(nodetypes.TypeLog, lognode.New(logger.With("module", "automation_log")))

	if deps.Jobs != nil {
		r.Register(nodetypes.TypeMoveJob, movejob.New(deps.Jobs))
	}
}
