package main

import (
	"context"
	"os"

	"github.com/dukex/stageflow/pkg/cmd"
	"github.com/dukex/stageflow/pkg/log"
	"github.com/dukex/stageflow/pkg/worker"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "stageflow-api",
		Usage:                 "Create, test and run stage automations",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Stageflow API")

			stack, err := cmd.NewStack(ctx, command, "stageflow-api", logger)
			if err != nil {
				return err
			}
			defer stack.Close(ctx)

			if command.String("event-bus") == "gochannel" {
				// In-memory events never leave this process, so it runs the worker too.
				lock, closeLock, err := cmd.NewRunLock(ctx, logger, command.String("redis-url"))
				if err != nil {
					return err
				}

				defer func() {
					if err := closeLock(); err != nil {
						logger.ErrorContext(ctx, "Failed to close run lock", "error", err)
					}
				}()

				manager := worker.NewWorkerManager("embedded", stack.Persistence, stack.Runs, lock, stack.EventBus, logger, worker.Options{
					ReaperSchedule: worker.DefaultReaperSchedule,
					StaleRunAfter:  command.Duration("stale-run-after"),
				})

				go func() {
					if err := manager.Start(ctx); err != nil {
						logger.ErrorContext(ctx, "Embedded worker stopped", "error", err)
					}
				}()
			}

			api := NewAPI(logger, stack)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("api").Error("Stageflow API stopped", "error", err)
		os.Exit(1)
	}
}
