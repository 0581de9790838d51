package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
)

const runsKind = "runs"

type runDocument struct {
	Run      *models.AutomationRun       `json:"run"`
	NodeRuns []*models.AutomationNodeRun `json:"node_runs"`
}

// RunRepository handles run-related file operations.
type RunRepository struct {
	store *store
}

func (r *RunRepository) load(op, id string) (*runDocument, error) {
	doc, err := readDoc[runDocument](r.store, runsKind, id)
	if err != nil {
		return nil, persistence.NewRunError(op, id, err)
	}

	if doc == nil || doc.Run == nil {
		return nil, persistence.NewRunError(op, id, persistence.ErrRunNotFound)
	}

	return doc, nil
}

func (r *RunRepository) CreateRun(_ context.Context, run *models.AutomationRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	saved := *run
	saved.NodeRuns = nil

	return writeDoc(r.store, runsKind, run.ID, &runDocument{Run: &saved})
}

func (r *RunRepository) UpdateRun(_ context.Context, run *models.AutomationRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("UpdateRun", run.ID)
	if err != nil {
		return err
	}

	saved := *run
	saved.NodeRuns = nil
	doc.Run = &saved

	return writeDoc(r.store, runsKind, run.ID, doc)
}

func (r *RunRepository) GetRun(_ context.Context, id string) (*models.AutomationRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("GetRun", id)
	if err != nil {
		return nil, err
	}

	run := doc.Run
	run.NodeRuns = doc.NodeRuns

	return run, nil
}

func (r *RunRepository) ListRuns(_ context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := listDocs[runDocument](r.store, runsKind)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.AutomationRun, 0)

	for _, doc := range docs {
		if doc.Run != nil && doc.Run.AutomationID == automationID {
			runs = append(runs, doc.Run)
		}
	}

	sortRunsNewestFirst(runs)

	start := min(max(offset, 0), len(runs))
	end := min(start+persistence.NormalizeLimit(limit), len(runs))

	return runs[start:end], nil
}

func (r *RunRepository) SaveNodeRun(_ context.Context, nodeRun *models.AutomationNodeRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("SaveNodeRun", nodeRun.RunID)
	if err != nil {
		return err
	}

	if nodeRun.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		nodeRun.ID = id
	}

	saved := *nodeRun
	replaced := false

	for i, nr := range doc.NodeRuns {
		if nr.ID == nodeRun.ID {
			doc.NodeRuns[i] = &saved
			replaced = true
		}
	}

	if !replaced {
		doc.NodeRuns = append(doc.NodeRuns, &saved)
	}

	return writeDoc(r.store, runsKind, nodeRun.RunID, doc)
}

func (r *RunRepository) ListNodeRuns(_ context.Context, runID string) ([]*models.AutomationNodeRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("ListNodeRuns", runID)
	if err != nil {
		return nil, err
	}

	return append([]*models.AutomationNodeRun{}, doc.NodeRuns...), nil
}

func (r *RunRepository) ListStaleRuns(_ context.Context, before time.Time) ([]*models.AutomationRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := listDocs[runDocument](r.store, runsKind)
	if err != nil {
		return nil, err
	}

	var stale []*models.AutomationRun

	for _, doc := range docs {
		run := doc.Run
		if run == nil || run.Status.IsTerminal() || !run.CreatedAt.Before(before) {
			continue
		}

		stale = append(stale, run)
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })

	return stale, nil
}

func sortRunsNewestFirst(runs []*models.AutomationRun) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}

		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
