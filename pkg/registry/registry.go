// Package registry maps node types to the runners that execute them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
)

// ErrRunnerNotFound is returned by Get when no runner is registered for a type.
var ErrRunnerNotFound = errors.New("runner not found")

// Runner executes one node. input is the output accumulated along the path
// that reached the node; config is the node's stored configuration.
type Runner interface {
	Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error)

func (f RunnerFunc) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	return f(ctx, actx, config, input)
}

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	runners map[string]Runner
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log,
		runners: make(map[string]Runner),
	}
}

// Register binds runner to nodeType, replacing any previous binding.
func (r *Registry) Register(nodeType string, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runners[nodeType]; exists {
		r.logger.Warn("Replacing registered runner", slog.String("type", nodeType))
	}

	r.runners[nodeType] = runner
}

func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.runners[nodeType]

	return ok
}

func (r *Registry) Get(nodeType string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runner, ok := r.runners[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunnerNotFound, nodeType)
	}

	return runner, nil
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.runners))
	for t := range r.runners {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// HealthCheck fails when no runner has been registered.
func (r *Registry) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.runners) == 0 {
		return errors.New("no node runners registered")
	}

	return nil
}
