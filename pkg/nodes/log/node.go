// Package log implements the util.log node.
package log

import (
	"context"
	"log/slog"

	"github.com/dukex/stageflow/pkg/automation"
	stagelog "github.com/dukex/stageflow/pkg/log"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

type Node struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}

	return &Node{logger: logger}
}

func (n *Node) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	message := template.Render(nodes.String(config, "message"), actx.TemplateData(input))
	level := stagelog.ParseLevel(nodes.String(config, "level"))

	n.logger.Log(ctx, level, message,
		slog.String("job_id", actx.JobID()),
		slog.String("event", eventKey(actx)),
	)

	return models.Succeeded(map[string]any{"message": message}), nil
}

func eventKey(actx *automation.Context) string {
	if actx == nil {
		return ""
	}

	return actx.EventKey
}
