package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/otelhelper"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/dukex/stageflow/pkg/registry"
	"github.com/dukex/stageflow/pkg/services"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// Stack is the wired service graph shared by the binaries.
type Stack struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	NodeTypes   *nodetypes.Registry
	Runners     *registry.Registry
	EventBus    eventbus.EventBus
	Automations *services.Automations
	Runs        *services.Runs

	closers []func(context.Context) error
}

// NewStack builds the stack from the CommonFlags values.
func NewStack(ctx context.Context, command *cli.Command, serviceName string, logger *slog.Logger) (*Stack, error) {
	s := &Stack{Logger: logger, NodeTypes: nodetypes.Default()}

	tracer, err := s.tracer(ctx, command.Bool("tracing"), serviceName)
	if err != nil {
		return nil, err
	}

	s.Persistence, err = NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		s.Close(ctx)

		return nil, err
	}

	s.closers = append(s.closers, s.Persistence.Close)

	s.EventBus, err = NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		s.Close(ctx)

		return nil, err
	}

	s.closers = append(s.closers, func(context.Context) error { return s.EventBus.Close() })

	s.Runners = NewRunnerRegistry(logger, s.Persistence.JobRepository(), RunnerOptions{
		HTTPTimeout:           command.Duration("http-timeout"),
		TelegramToken:         command.String("telegram-token"),
		WhatsAppToken:         command.String("whatsapp-token"),
		WhatsAppPhoneNumberID: command.String("whatsapp-phone-number-id"),
	})

	eng := engine.New(s.NodeTypes, s.Runners, tracer, logger)
	s.Automations = services.NewAutomations(s.Persistence, s.NodeTypes, logger)
	s.Runs = services.NewRuns(s.Persistence, eng, s.NodeTypes, s.EventBus, logger)

	return s, nil
}

//nolint:ireturn
func (s *Stack) tracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, error) {
	if !enabled {
		return otelhelper.Noop(), nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	s.closers = append(s.closers, shutdown)

	return tracer, nil
}

// Close releases everything in reverse construction order.
func (s *Stack) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.Logger.ErrorContext(ctx, "Failed to close resource", "error", err)
		}
	}

	s.closers = nil
}
