package file

import (
	"context"
	"errors"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
)

const (
	jobsKind   = "jobs"
	stagesKind = "stages"
	usersKind  = "users"
)

// JobRepository stores workflow jobs, stages and users as individual files.
type JobRepository struct {
	store *store
}

func getDoc[T any](s *store, kind, id string, notFound error) (*T, error) {
	doc, err := readDoc[T](s, kind, id)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, notFound
	}

	return doc, nil
}

func (r *JobRepository) GetJob(_ context.Context, id string) (*models.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDoc[models.Job](r.store, jobsKind, id, persistence.ErrJobNotFound)
}

func (r *JobRepository) GetStage(_ context.Context, id string) (*models.Stage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDoc[models.Stage](r.store, stagesKind, id, persistence.ErrStageNotFound)
}

func (r *JobRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDoc[models.User](r.store, usersKind, id, persistence.ErrUserNotFound)
}

func (r *JobRepository) MoveJob(_ context.Context, jobID, stageID string) (*models.Job, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	job, err := getDoc[models.Job](r.store, jobsKind, jobID, persistence.ErrJobNotFound)
	if err != nil {
		return nil, err
	}

	stage, err := getDoc[models.Stage](r.store, stagesKind, stageID, persistence.ErrStageNotFound)
	if err != nil {
		return nil, err
	}

	if stage.WorkflowID != "" && job.WorkflowID != "" && stage.WorkflowID != job.WorkflowID {
		return nil, persistence.ErrStageNotInWorkflow
	}

	job.StageID = stage.ID

	if err := writeDoc(r.store, jobsKind, job.ID, job); err != nil {
		return nil, err
	}

	return job, nil
}

func (r *JobRepository) SaveJob(_ context.Context, job *models.Job) error {
	return r.save(jobsKind, job.ID, job)
}

func (r *JobRepository) SaveStage(_ context.Context, stage *models.Stage) error {
	return r.save(stagesKind, stage.ID, stage)
}

func (r *JobRepository) SaveUser(_ context.Context, user *models.User) error {
	return r.save(usersKind, user.ID, user)
}

func (r *JobRepository) save(kind, id string, v any) error {
	if id == "" {
		return errors.New(kind + " id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return writeDoc(r.store, kind, id, v)
}
