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
)

// AutomationRepository handles automation, version and trigger database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `
	id
  , tenant_id
  , name
  , description
  , enabled
  , published_version
  , created_at
  , updated_at
`

func scanAutomation(row scanner) (*models.Automation, error) {
	var (
		a         models.Automation
		published sql.NullInt64
	)

	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.Enabled, &published, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if published.Valid {
		v := int(published.Int64)
		a.PublishedVersion = &v
	}

	return &a, nil
}

func (r *AutomationRepository) List(ctx context.Context, opts persistence.ListAutomationsOptions) (*persistence.AutomationListResult, error) {
	where := `WHERE ($1::TEXT = '' OR tenant_id = $1) AND ($2::BOOLEAN IS NULL OR enabled = $2)`

	var enabled sql.NullBool
	if opts.Enabled != nil {
		enabled = sql.NullBool{Bool: *opts.Enabled, Valid: true}
	}

	var total int64

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automations `+where, opts.TenantID, enabled).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count automations: %w", err)
	}

	limit := persistence.NormalizeLimit(opts.Limit)
	offset := max(opts.Offset, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+automationColumns+` FROM automations `+where+` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		opts.TenantID, enabled, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return &persistence.AutomationListResult{
		Automations: automations,
		TotalCount:  total,
		HasNextPage: int64(offset+len(automations)) < total,
	}, nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+automationColumns+` FROM automations WHERE id = $1`, id)

	a, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	return a, nil
}

// Save saves an automation to the database.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()

	if automation.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		automation.ID = id
	}

	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	var published sql.NullInt64
	if automation.PublishedVersion != nil {
		published = sql.NullInt64{Int64: int64(*automation.PublishedVersion), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automations (id, tenant_id, name, description, enabled, published_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id
		  , name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , enabled = EXCLUDED.enabled
		  , published_version = EXCLUDED.published_version
		  , updated_at = EXCLUDED.updated_at
	`, automation.ID, automation.TenantID, automation.Name, automation.Description, automation.Enabled,
		published, automation.CreatedAt, automation.UpdatedAt)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	return nil
}

// Delete removes an automation. Versions, triggers and runs cascade.
func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = $1`, id)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

// lockAutomation locks the automation row for the rest of tx.
func lockAutomation(ctx context.Context, tx *sql.Tx, op, automationID string) error {
	var id string

	err := tx.QueryRowContext(ctx, `SELECT id FROM automations WHERE id = $1 FOR UPDATE`, automationID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewAutomationError(op, automationID, persistence.ErrAutomationNotFound)
		}

		return persistence.NewAutomationError(op, automationID, err)
	}

	return nil
}

func (r *AutomationRepository) CreateVersion(ctx context.Context, automationID string, def models.Definition, createdBy string) (*models.AutomationVersion, error) {
	definition, err := marshalJSONB(def)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := lockAutomation(ctx, tx, "CreateVersion", automationID); err != nil {
		return nil, err
	}

	version := &models.AutomationVersion{
		AutomationID: automationID,
		Definition:   def.Clone(),
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM automation_versions WHERE automation_id = $1`, automationID,
	).Scan(&version.Version)
	if err != nil {
		return nil, persistence.NewAutomationError("CreateVersion", automationID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO automation_versions (automation_id, version, definition, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, automationID, version.Version, definition, createdBy, version.CreatedAt)
	if err != nil {
		return nil, persistence.NewAutomationError("CreateVersion", automationID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return version, nil
}

func scanVersion(row scanner) (*models.AutomationVersion, error) {
	var (
		v          models.AutomationVersion
		definition []byte
	)

	if err := row.Scan(&v.AutomationID, &v.Version, &definition, &v.CreatedBy, &v.CreatedAt); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(definition, &v.Definition); err != nil {
		return nil, err
	}

	return &v, nil
}

func (r *AutomationRepository) GetVersion(ctx context.Context, automationID string, version int) (*models.AutomationVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT automation_id, version, definition, created_by, created_at
		FROM automation_versions
		WHERE automation_id = $1 AND version = $2
	`, automationID, version)

	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetVersion", automationID, persistence.ErrVersionNotFound)
		}

		return nil, persistence.NewAutomationError("GetVersion", automationID, err)
	}

	return v, nil
}

func (r *AutomationRepository) ListVersions(ctx context.Context, automationID string) ([]*models.AutomationVersion, error) {
	if _, err := r.GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT automation_id, version, definition, created_by, created_at
		FROM automation_versions
		WHERE automation_id = $1
		ORDER BY version DESC
	`, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation versions: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	versions := make([]*models.AutomationVersion, 0)

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation version: %w", err)
		}

		versions = append(versions, v)
	}

	return versions, rows.Err()
}

func (r *AutomationRepository) SetPublishedVersion(ctx context.Context, automationID string, version int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE automations
		SET published_version = $2, updated_at = $3
		WHERE id = $1
		  AND EXISTS (SELECT 1 FROM automation_versions WHERE automation_id = $1 AND version = $2)
	`, automationID, version, time.Now().UTC())
	if err != nil {
		return persistence.NewAutomationError("SetPublishedVersion", automationID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("SetPublishedVersion", automationID, err)
	}

	if affected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, automationID); err != nil {
		return err
	}

	return persistence.NewAutomationError("SetPublishedVersion", automationID, persistence.ErrVersionNotFound)
}

const triggerColumns = `
	t.id
  , t.automation_id
  , t.node_id
  , t.event_key
  , t.workflow_id
  , t.stage_id
  , t.enabled
  , t.created_at
  , t.updated_at
`

func scanTrigger(row scanner) (*models.AutomationTrigger, error) {
	var t models.AutomationTrigger

	err := row.Scan(&t.ID, &t.AutomationID, &t.NodeID, &t.EventKey, &t.WorkflowID, &t.StageID, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *AutomationRepository) queryTriggers(ctx context.Context, query string, args ...any) ([]*models.AutomationTrigger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation triggers: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	triggers := make([]*models.AutomationTrigger, 0)

	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation trigger: %w", err)
		}

		triggers = append(triggers, t)
	}

	return triggers, rows.Err()
}

func (r *AutomationRepository) ListTriggers(ctx context.Context, automationID string) ([]*models.AutomationTrigger, error) {
	if _, err := r.GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	return r.queryTriggers(ctx,
		`SELECT `+triggerColumns+` FROM automation_triggers t WHERE t.automation_id = $1 ORDER BY t.created_at, t.id`,
		automationID)
}

func (r *AutomationRepository) GetTrigger(ctx context.Context, automationID, triggerID string) (*models.AutomationTrigger, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+triggerColumns+` FROM automation_triggers t WHERE t.automation_id = $1 AND t.id = $2`,
		automationID, triggerID)

	t, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetTrigger", automationID, persistence.ErrTriggerNotFound)
		}

		return nil, persistence.NewAutomationError("GetTrigger", automationID, err)
	}

	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTrigger(ctx context.Context, db execer, t *models.AutomationTrigger) error {
	now := time.Now().UTC()

	if t.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		t.ID = id
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}

	t.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO automation_triggers (id, automation_id, node_id, event_key, workflow_id, stage_id, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			node_id = EXCLUDED.node_id
		  , event_key = EXCLUDED.event_key
		  , workflow_id = EXCLUDED.workflow_id
		  , stage_id = EXCLUDED.stage_id
		  , enabled = EXCLUDED.enabled
		  , updated_at = EXCLUDED.updated_at
	`, t.ID, t.AutomationID, t.NodeID, t.EventKey, t.WorkflowID, t.StageID, t.Enabled, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return persistence.NewAutomationError("SaveTrigger", t.AutomationID, err)
	}

	return nil
}

func (r *AutomationRepository) SaveTrigger(ctx context.Context, trigger *models.AutomationTrigger) error {
	if _, err := r.GetByID(ctx, trigger.AutomationID); err != nil {
		return err
	}

	return upsertTrigger(ctx, r.db, trigger)
}

func (r *AutomationRepository) ReplaceTriggers(ctx context.Context, automationID string, triggers []*models.AutomationTrigger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := lockAutomation(ctx, tx, "ReplaceTriggers", automationID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM automation_triggers WHERE automation_id = $1`, automationID); err != nil {
		return persistence.NewAutomationError("ReplaceTriggers", automationID, err)
	}

	for _, t := range triggers {
		t.AutomationID = automationID

		if err := upsertTrigger(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *AutomationRepository) FindTriggers(ctx context.Context, eventKey, workflowID, stageID string) ([]*models.AutomationTrigger, error) {
	return r.queryTriggers(ctx, `
		SELECT `+triggerColumns+`
		FROM automation_triggers t
		JOIN automations a ON a.id = t.automation_id
		WHERE t.enabled
		  AND a.enabled
		  AND t.event_key = $1
		  AND (t.workflow_id = '' OR t.workflow_id = $2)
		  AND (t.stage_id = '' OR t.stage_id = $3)
		ORDER BY t.automation_id, t.id
	`, eventKey, workflowID, stageID)
}
