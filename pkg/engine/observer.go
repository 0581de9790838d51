package engine

import (
	"context"

	"github.com/dukex/stageflow/pkg/models"
)

// Observer is notified while a traversal progresses. Live runs use it to
// persist node runs and the pending node count.
type Observer interface {
	NodeStarted(ctx context.Context, node models.Node, input map[string]any)
	NodeFinished(ctx context.Context, node models.Node, step models.StepResult)
	QueueChanged(ctx context.Context, pending int)
}

type nopObserver struct{}

func (nopObserver) NodeStarted(context.Context, models.Node, map[string]any)     {}
func (nopObserver) NodeFinished(context.Context, models.Node, models.StepResult) {}
func (nopObserver) QueueChanged(context.Context, int)                            {}
