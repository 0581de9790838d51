package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
)

// JobRepository reads and moves workflow jobs.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, db queryRower, id string, lock bool) (*models.Job, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , stage_id
		  , title
		  , priority
		  , due_date
		  , contact
		  , invoice
		FROM workflow_jobs
		WHERE id = $1
	`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		job              models.Job
		contact, invoice []byte
	)

	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.WorkflowID, &job.StageID, &job.Title, &job.Priority, &job.DueDate, &contact, &invoice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrJobNotFound
		}

		return nil, err
	}

	if err := unmarshalJSONB(contact, &job.Contact); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(invoice, &job.Invoice); err != nil {
		return nil, err
	}

	return &job, nil
}

func getStage(ctx context.Context, db queryRower, id string) (*models.Stage, error) {
	var stage models.Stage

	err := db.QueryRowContext(ctx,
		`SELECT id, workflow_id, name, position FROM workflow_stages WHERE id = $1`, id,
	).Scan(&stage.ID, &stage.WorkflowID, &stage.Name, &stage.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStageNotFound
		}

		return nil, err
	}

	return &stage, nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return getJob(ctx, r.db, id, false)
}

func (r *JobRepository) GetStage(ctx context.Context, id string) (*models.Stage, error) {
	return getStage(ctx, r.db, id)
}

func (r *JobRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User

	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM users WHERE id = $1`, id).Scan(&user.ID, &user.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, err
	}

	return &user, nil
}

func (r *JobRepository) MoveJob(ctx context.Context, jobID, stageID string) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback() }()

	job, err := getJob(ctx, tx, jobID, true)
	if err != nil {
		return nil, err
	}

	stage, err := getStage(ctx, tx, stageID)
	if err != nil {
		return nil, err
	}

	if stage.WorkflowID != "" && job.WorkflowID != "" && stage.WorkflowID != job.WorkflowID {
		return nil, persistence.ErrStageNotInWorkflow
	}

	if _, err := tx.ExecContext(ctx, `UPDATE workflow_jobs SET stage_id = $2 WHERE id = $1`, jobID, stage.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.StageID = stage.ID

	return job, nil
}

func (r *JobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	contact, err := marshalJSONB(job.Contact)
	if err != nil {
		return err
	}

	invoice, err := marshalJSONB(job.Invoice)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_jobs (id, workflow_id, stage_id, title, priority, due_date, contact, invoice)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id
		  , stage_id = EXCLUDED.stage_id
		  , title = EXCLUDED.title
		  , priority = EXCLUDED.priority
		  , due_date = EXCLUDED.due_date
		  , contact = EXCLUDED.contact
		  , invoice = EXCLUDED.invoice
	`, job.ID, job.WorkflowID, job.StageID, job.Title, job.Priority, job.DueDate, contact, invoice)

	return err
}

func (r *JobRepository) SaveStage(ctx context.Context, stage *models.Stage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_stages (id, workflow_id, name, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id
		  , name = EXCLUDED.name
		  , position = EXCLUDED.position
	`, stage.ID, stage.WorkflowID, stage.Name, stage.Position)

	return err
}

func (r *JobRepository) SaveUser(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, user.ID, user.Name)

	return err
}
