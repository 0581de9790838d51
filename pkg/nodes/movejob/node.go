// Package movejob implements the workflow.move_job node.
package movejob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

var (
	ErrNoJob          = errors.New("run has no job to move")
	ErrMissingStageID = errors.New("missing required field 'stage_id'")
)

// Mover moves a job to another stage and returns the updated job.
type Mover interface {
	MoveJob(ctx context.Context, jobID, stageID string) (*models.Job, error)
}

type Node struct {
	jobs Mover
}

func New(jobs Mover) *Node {
	return &Node{jobs: jobs}
}

func (n *Node) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	if actx == nil || actx.Job == nil {
		return models.NodeResult{}, ErrNoJob
	}

	stageID := strings.TrimSpace(template.Render(nodes.String(config, "stage_id"), actx.TemplateData(input)))
	if stageID == "" {
		return models.NodeResult{}, ErrMissingStageID
	}

	from := actx.Job.StageID

	job, err := n.jobs.MoveJob(ctx, actx.Job.ID, stageID)
	if err != nil {
		return models.NodeResult{}, fmt.Errorf("failed to move job %s: %w", actx.Job.ID, err)
	}

	return models.Succeeded(map[string]any{
		"job_id":        job.ID,
		"from_stage_id": from,
		"to_stage_id":   job.StageID,
	}), nil
}
