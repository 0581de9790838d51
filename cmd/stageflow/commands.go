package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/cmd"
	"github.com/dukex/stageflow/pkg/definition"
	"github.com/dukex/stageflow/pkg/engine"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/log"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

var errMissingFile = errors.New("a definition file is required")

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a definition file and print its warnings",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			def, err := loadDefinition(command.Args().First())
			if err != nil {
				return err
			}

			out := command.Root().Writer

			for _, warning := range definition.Lint(def, nodetypes.Default()) {
				fmt.Fprintln(out, "warning:", warning)
			}

			fmt.Fprintf(out, "ok: %d nodes, %d edges\n", len(def.Nodes), len(def.Edges))

			return nil
		},
	}
}

func dryRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "dry-run",
		Usage:     "Walk a definition for a job without executing any action",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "job-file",
				Usage:    "JSON file with the job the automation runs for",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "event",
				Usage: "Event key selecting the start triggers",
				Value: string(events.JobStageChangedEvent),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.New(command.Root().ErrWriter, command.String("log-level"), "text")

			def, err := loadDefinition(command.Args().First())
			if err != nil {
				return err
			}

			var job models.Job
			if err := readJSON(command.String("job-file"), &job); err != nil {
				return err
			}

			types := nodetypes.Default()
			runners := cmd.NewRunnerRegistry(logger, nil, cmd.RunnerOptions{})
			eng := engine.New(types, runners, otelhelper.Noop(), logger)

			actx := &automation.Context{
				Job:      &job,
				ToStage:  &models.Stage{ID: job.StageID, WorkflowID: job.WorkflowID},
				EventKey: command.String("event"),
			}

			result, err := eng.Execute(ctx, def, actx, engine.Options{
				DryRun:    true,
				SeedTypes: types.TriggerTypesForEvent(command.String("event")),
			})
			if err != nil {
				return err
			}

			return writeJSON(command.Root().Writer, map[string]any{
				"results":        result.Steps,
				"available_data": result.AvailableData,
				"skipped_edges":  result.Skipped,
			})
		},
	}
}

// loadDefinition reads an automation form payload and normalises it.
func loadDefinition(path string) (models.Definition, error) {
	if path == "" {
		return models.Definition{}, errMissingFile
	}

	var payload definition.FormPayload
	if err := readJSON(path, &payload); err != nil {
		return models.Definition{}, err
	}

	def := definition.Build(payload)

	if err := definition.Validate(def); err != nil {
		return models.Definition{}, fmt.Errorf("invalid definition: %w", err)
	}

	return def, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
