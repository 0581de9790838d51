package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/stageflow/pkg/cmd"
	"github.com/dukex/stageflow/pkg/log"
	"github.com/dukex/stageflow/pkg/metrics"
	"github.com/dukex/stageflow/pkg/worker"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "stageflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Run automations for job events",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "reaper-schedule",
				Usage:   "Cron expression of the stale run reaper, empty to disable",
				Value:   worker.DefaultReaperSchedule,
				Sources: cli.EnvVars("REAPER_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address of the Prometheus /metrics listener, empty to disable",
				Value:   ":9090",
				Sources: cli.EnvVars("METRICS_ADDR"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("stageflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Stageflow Worker")

			stack, err := cmd.NewStack(ctx, command, "stageflow-worker", logger)
			if err != nil {
				return err
			}
			defer stack.Close(ctx)

			lock, closeLock, err := cmd.NewRunLock(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := closeLock(); err != nil {
					logger.ErrorContext(ctx, "Failed to close run lock", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr := command.String("metrics-addr"); addr != "" {
				go func() {
					if err := metrics.Serve(ctx, addr, logger); err != nil {
						logger.ErrorContext(ctx, "Metrics server stopped", "error", err)
					}
				}()
			}

			manager := worker.NewWorkerManager(workerID, stack.Persistence, stack.Runs, lock, stack.EventBus, logger, worker.Options{
				ReaperSchedule: command.String("reaper-schedule"),
				StaleRunAfter:  command.Duration("stale-run-after"),
			})

			return manager.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("stageflow-worker").Error("Stageflow Worker stopped", "error", err)
		os.Exit(1)
	}
}
