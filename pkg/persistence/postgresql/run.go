package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/lib/pq"
)

const foreignKeyViolation = pq.ErrorCode("23503")

// RunRepository handles the run audit trail.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
	id
  , automation_id
  , version
  , tenant_id
  , subject_type
  , subject_id
  , event_key
  , event_id
  , status
  , pending_nodes
  , error
  , started_at
  , finished_at
  , created_at
`

func scanRun(row scanner) (*models.AutomationRun, error) {
	var (
		run        models.AutomationRun
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.AutomationID, &run.Version, &run.TenantID, &run.SubjectType, &run.SubjectID,
		&run.EventKey, &run.EventID, &run.Status, &run.PendingNodes, &run.Error,
		&startedAt, &finishedAt, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt = timePtr(startedAt)
	run.FinishedAt = timePtr(finishedAt)

	return &run, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Time

	return &v
}

func (r *RunRepository) CreateRun(ctx context.Context, run *models.AutomationRun) error {
	if run.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		run.ID = id
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.AutomationID, run.Version, run.TenantID, run.SubjectType, run.SubjectID,
		run.EventKey, run.EventID, run.Status, run.PendingNodes, run.Error,
		run.StartedAt, run.FinishedAt, run.CreatedAt)
	if err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run *models.AutomationRun) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_runs SET
			status = $2
		  , pending_nodes = $3
		  , error = $4
		  , started_at = $5
		  , finished_at = $6
		WHERE id = $1
	`, run.ID, run.Status, run.PendingNodes, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	if affected == 0 {
		return persistence.NewRunError("UpdateRun", run.ID, persistence.ErrRunNotFound)
	}

	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.AutomationRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM automation_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetRun", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetRun", id, err)
	}

	nodeRuns, err := r.ListNodeRuns(ctx, id)
	if err != nil {
		return nil, err
	}

	run.NodeRuns = nodeRuns

	return run, nil
}

func (r *RunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*models.AutomationRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation runs: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.AutomationRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation run: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *RunRepository) ListRuns(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error) {
	return r.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM automation_runs
		WHERE automation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, automationID, persistence.NormalizeLimit(limit), max(offset, 0))
}

func (r *RunRepository) ListStaleRuns(ctx context.Context, before time.Time) ([]*models.AutomationRun, error) {
	return r.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM automation_runs
		WHERE status IN ('queued', 'running')
		  AND created_at < $1
		ORDER BY created_at
	`, before)
}

func (r *RunRepository) SaveNodeRun(ctx context.Context, nodeRun *models.AutomationNodeRun) error {
	if nodeRun.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		nodeRun.ID = id
	}

	input, err := marshalJSONB(nodeRun.Input)
	if err != nil {
		return err
	}

	output, err := marshalJSONB(nodeRun.Output)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_node_runs (id, run_id, node_id, node_type, status, attempts, input, output, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , attempts = EXCLUDED.attempts
		  , input = EXCLUDED.input
		  , output = EXCLUDED.output
		  , error = EXCLUDED.error
		  , finished_at = EXCLUDED.finished_at
	`, nodeRun.ID, nodeRun.RunID, nodeRun.NodeID, nodeRun.NodeType, nodeRun.Status, nodeRun.Attempts,
		input, output, nodeRun.Error, nodeRun.StartedAt, nodeRun.FinishedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return persistence.NewRunError("SaveNodeRun", nodeRun.RunID, persistence.ErrRunNotFound)
		}

		return persistence.NewRunError("SaveNodeRun", nodeRun.RunID, err)
	}

	return nil
}

func (r *RunRepository) ListNodeRuns(ctx context.Context, runID string) ([]*models.AutomationNodeRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , run_id
		  , node_id
		  , node_type
		  , status
		  , attempts
		  , input
		  , output
		  , error
		  , started_at
		  , finished_at
		FROM automation_node_runs
		WHERE run_id = $1
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node runs: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	nodeRuns := make([]*models.AutomationNodeRun, 0)

	for rows.Next() {
		var (
			nr            models.AutomationNodeRun
			input, output []byte
			finishedAt    sql.NullTime
		)

		err := rows.Scan(&nr.ID, &nr.RunID, &nr.NodeID, &nr.NodeType, &nr.Status, &nr.Attempts,
			&input, &output, &nr.Error, &nr.StartedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}

		if err := unmarshalJSONB(input, &nr.Input); err != nil {
			return nil, err
		}

		if err := unmarshalJSONB(output, &nr.Output); err != nil {
			return nil, err
		}

		nr.FinishedAt = timePtr(finishedAt)
		nodeRuns = append(nodeRuns, &nr)
	}

	return nodeRuns, rows.Err()
}
