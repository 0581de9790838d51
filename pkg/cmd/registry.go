package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/stageflow/pkg/nodes/movejob"
	"github.com/dukex/stageflow/pkg/nodes/telegram"
	"github.com/dukex/stageflow/pkg/nodes/whatsapp"
	"github.com/dukex/stageflow/pkg/registry"
)

type RunnerOptions struct {
	HTTPTimeout           time.Duration
	TelegramToken         string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
}

// NewRunnerRegistry registers the built-in runners sharing one HTTP client.
// jobs may be nil, which leaves workflow.move_job unregistered.
func NewRunnerRegistry(logger *slog.Logger, jobs movejob.Mover, opts RunnerOptions) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterDefaults(registry.Dependencies{
		HTTPClient: &http.Client{Timeout: opts.HTTPTimeout},
		Jobs:       jobs,
		Logger:     logger,
		Telegram:   telegram.Options{Token: opts.TelegramToken},
		WhatsApp:   whatsapp.Options{Token: opts.WhatsAppToken, PhoneNumberID: opts.WhatsAppPhoneNumberID},
	})

	logger.Info("Registered runners", "types", reg.Types())

	return reg
}
