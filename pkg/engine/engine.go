// Package engine walks an automation definition breadth-first, invoking the
// registered runner of every reachable node.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
	"github.com/dukex/stageflow/pkg/otelhelper"
	"github.com/dukex/stageflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBranch is used when a condition output or an edge carries no branch.
const DefaultBranch = "true"

// Options control one traversal.
type Options struct {
	// DryRun replaces every runner call with a placeholder result.
	DryRun bool
	// SeedTypes are the trigger types the traversal starts from. Defaults to
	// workflow.stage_entered.
	SeedTypes []string
	Observer  Observer
}

// Result is the outcome of one traversal.
type Result struct {
	Steps []models.StepResult `json:"results"`
	// AvailableData lists the template keys visible at the end of the run.
	AvailableData []string `json:"available_data"`
	// Skipped counts edges whose target is not a node of the definition.
	Skipped int `json:"skipped_edges"`
}

// Failed reports whether any visited node ended in error.
func (r Result) Failed() bool {
	return r.FirstError() != ""
}

// FirstError returns the error message of the first failed step.
func (r Result) FirstError() string {
	for _, s := range r.Steps {
		if s.Status != models.NodeStatusError {
			continue
		}

		if msg, ok := s.Output["error"].(string); ok && msg != "" {
			return msg
		}

		return fmt.Sprintf("node %s failed", s.NodeID)
	}

	return ""
}

type Engine struct {
	types   *nodetypes.Registry
	runners *registry.Registry
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(types *nodetypes.Registry, runners *registry.Registry, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if tracer == nil {
		tracer = otelhelper.Noop()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		types:   types,
		runners: runners,
		tracer:  tracer,
		logger:  logger.With("module", "engine"),
	}
}

// step is the classification of a node for the branching rule.
type step interface {
	node() models.Node
}

type (
	triggerStep   struct{ n models.Node }
	conditionStep struct{ n models.Node }
	actionStep    struct{ n models.Node }
)

func (s triggerStep) node() models.Node   { return s.n }
func (s conditionStep) node() models.Node { return s.n }
func (s actionStep) node() models.Node    { return s.n }

func (e *Engine) classify(n models.Node) step {
	switch e.types.Category(n.Type) {
	case models.CategoryTypeTrigger:
		return triggerStep{n}
	case models.CategoryTypeLogic:
		return conditionStep{n}
	default:
		return actionStep{n}
	}
}

type graph struct {
	nodes map[string]models.Node
	order []string
	edges map[string][]models.Edge
}

func buildGraph(def models.Definition) graph {
	g := graph{
		nodes: make(map[string]models.Node, len(def.Nodes)),
		edges: make(map[string][]models.Edge),
	}

	for _, n := range def.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}

		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	for _, edge := range def.Edges {
		if edge.From == "" || edge.To == "" {
			continue
		}

		g.edges[edge.From] = append(g.edges[edge.From], edge)
	}

	return g
}

// Execute walks def starting from the seed trigger nodes and returns the
// visited steps in order. Each node runs at most once. A missing runner or a
// runner error halts that branch only; other branches continue. The returned
// error is non-nil only when ctx is cancelled, together with the partial result.
func (e *Engine) Execute(ctx context.Context, def models.Definition, actx *automation.Context, opts Options) (Result, error) {
	seeds := opts.SeedTypes
	if len(seeds) == 0 {
		seeds = []string{nodetypes.TypeStageEntered}
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute",
		attribute.String(otelhelper.JobIDKey, actx.JobID()),
		attribute.Bool(otelhelper.DryRunKey, opts.DryRun),
	)
	defer span.End()

	g := buildGraph(def)
	visited := make(map[string]bool, len(g.nodes))
	input := map[string]any{}
	result := Result{Steps: []models.StepResult{}}

	var queue []string

	for _, id := range g.order {
		if slices.Contains(seeds, g.nodes[id].Type) {
			queue = append(queue, id)
		}
	}

	observer.QueueChanged(ctx, len(queue))

	started := time.Now()

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			otelhelper.SetError(span, err)
			result.AvailableData = automation.Keys(actx.TemplateData(input))

			return result, err
		}

		id := queue[0]
		queue = queue[1:]

		if visited[id] {
			observer.QueueChanged(ctx, len(queue))

			continue
		}

		visited[id] = true

		s := e.classify(g.nodes[id])

		stepResult, next := e.visit(ctx, s, actx, input, opts.DryRun, observer)
		result.Steps = append(result.Steps, stepResult)

		if _, isCondition := s.(conditionStep); !isCondition && stepResult.Status == models.NodeStatusSuccess {
			maps.Copy(input, stepResult.Output)
		}

		for _, edge := range next(g.edges[id]) {
			if _, ok := g.nodes[edge.To]; !ok {
				result.Skipped++

				continue
			}

			queue = append(queue, edge.To)
		}

		observer.QueueChanged(ctx, len(queue))
	}

	result.AvailableData = automation.Keys(actx.TemplateData(input))

	if result.Failed() {
		otelhelper.SetErrorMessage(span, result.FirstError())
	}

	e.logger.InfoContext(ctx, "automation traversal finished",
		slog.String("job_id", actx.JobID()),
		slog.Int("steps", len(result.Steps)),
		slog.Int("skipped_edges", result.Skipped),
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("failed", result.Failed()),
		slog.Duration("duration", time.Since(started)),
	)

	return result, nil
}

// edgeFilter selects which out-edges of a visited node are followed.
type edgeFilter func([]models.Edge) []models.Edge

func followAll(edges []models.Edge) []models.Edge { return edges }

func followNone([]models.Edge) []models.Edge { return nil }

func followBranch(branch string) edgeFilter {
	return func(edges []models.Edge) []models.Edge {
		var out []models.Edge

		for _, edge := range edges {
			handle := edge.SourceHandle
			if handle == "" {
				handle = DefaultBranch
			}

			if handle == branch {
				out = append(out, edge)
			}
		}

		return out
	}
}

func (e *Engine) visit(ctx context.Context, s step, actx *automation.Context, input map[string]any, dryRun bool, observer Observer) (models.StepResult, edgeFilter) {
	n := s.node()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.node",
		attribute.String(otelhelper.NodeIDKey, n.ID),
		attribute.String(otelhelper.NodeTypeKey, n.Type),
	)
	defer span.End()

	observer.NodeStarted(ctx, n, maps.Clone(input))

	stepResult, next := e.run(ctx, s, actx, input, dryRun)

	span.SetAttributes(attribute.String(otelhelper.NodeStatusKey, string(stepResult.Status)))

	if stepResult.Status == models.NodeStatusError {
		if msg, ok := stepResult.Output["error"].(string); ok {
			otelhelper.SetErrorMessage(span, msg)
		}
	}

	e.logger.DebugContext(ctx, "node visited",
		slog.String("node_id", n.ID),
		slog.String("type", n.Type),
		slog.String("status", string(stepResult.Status)),
	)

	observer.NodeFinished(ctx, n, stepResult)

	return stepResult, next
}

func (e *Engine) run(ctx context.Context, s step, actx *automation.Context, input map[string]any, dryRun bool) (models.StepResult, edgeFilter) {
	n := s.node()
	stepResult := models.StepResult{NodeID: n.ID, Type: n.Type}

	if _, ok := s.(triggerStep); ok {
		stepResult.Status = models.NodeStatusSuccess
		stepResult.Output = map[string]any{}

		return stepResult, followAll
	}

	runner, err := e.runners.Get(n.Type)
	if err != nil {
		stepResult.Status = models.NodeStatusError
		stepResult.Output = map[string]any{"error": "Runner no encontrado para: " + n.Type}

		return stepResult, followNone
	}

	var nodeResult models.NodeResult

	if dryRun {
		stepResult.Status = models.NodeStatusDryRun
		nodeResult = models.Succeeded(map[string]any{
			"dry_run":        true,
			"config":         n.Config,
			"available_data": automation.Keys(actx.TemplateData(input)),
		})
	} else {
		nodeResult, err = runner.Run(ctx, actx, configOf(n), maps.Clone(input))
		if err != nil {
			stepResult.Status = models.NodeStatusError
			stepResult.Output = map[string]any{"error": err.Error()}

			return stepResult, followNone
		}

		stepResult.Status = models.NodeStatusSuccess
		if !nodeResult.Success {
			stepResult.Status = models.NodeStatusError
		}
	}

	stepResult.Output = nodeResult.Output
	if stepResult.Output == nil {
		stepResult.Output = map[string]any{}
	}

	switch s.(type) {
	case conditionStep:
		if !nodeResult.Success {
			return stepResult, followAll
		}

		branch, _ := nodeResult.Output["branch"].(string)
		if branch == "" {
			branch = DefaultBranch
		}

		return stepResult, followBranch(branch)
	default:
		return stepResult, followAll
	}
}

func configOf(n models.Node) map[string]any {
	if n.Config == nil {
		return map[string]any{}
	}

	return n.Config
}
