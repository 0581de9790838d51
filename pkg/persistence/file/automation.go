package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/google/uuid"
)

const automationsKind = "automations"

// automationDocument keeps an automation together with its versions and
// triggers in one file.
type automationDocument struct {
	Automation *models.Automation          `json:"automation"`
	Versions   []*models.AutomationVersion `json:"versions"`
	Triggers   []*models.AutomationTrigger `json:"triggers"`
}

// AutomationRepository handles automation-related file operations.
type AutomationRepository struct {
	store *store
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}

func (r *AutomationRepository) load(op, id string) (*automationDocument, error) {
	doc, err := readDoc[automationDocument](r.store, automationsKind, id)
	if err != nil {
		return nil, persistence.NewAutomationError(op, id, err)
	}

	if doc == nil || doc.Automation == nil {
		return nil, persistence.NewAutomationError(op, id, persistence.ErrAutomationNotFound)
	}

	return doc, nil
}

func (r *AutomationRepository) List(_ context.Context, opts persistence.ListAutomationsOptions) (*persistence.AutomationListResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := listDocs[automationDocument](r.store, automationsKind)
	if err != nil {
		return nil, err
	}

	all := make([]*models.Automation, 0, len(docs))

	for _, doc := range docs {
		a := doc.Automation
		if a == nil {
			continue
		}

		if opts.TenantID != "" && a.TenantID != opts.TenantID {
			continue
		}

		if opts.Enabled != nil && a.Enabled != *opts.Enabled {
			continue
		}

		all = append(all, a)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}

		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit := persistence.NormalizeLimit(opts.Limit)
	offset := max(opts.Offset, 0)
	total := len(all)

	start := min(offset, total)
	end := min(start+limit, total)

	return &persistence.AutomationListResult{
		Automations: all[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

func (r *AutomationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("GetByID", id)
	if err != nil {
		return nil, err
	}

	return doc.Automation, nil
}

func (r *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

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

	doc, err := readDoc[automationDocument](r.store, automationsKind, automation.ID)
	if err != nil {
		return persistence.NewAutomationError("Save", automation.ID, err)
	}

	if doc == nil {
		doc = &automationDocument{}
	}

	saved := *automation
	doc.Automation = &saved

	return writeDoc(r.store, automationsKind, automation.ID, doc)
}

// Delete removes the automation document and the runs recorded for it.
func (r *AutomationRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existed, err := removeDoc(r.store, automationsKind, id)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	if !existed {
		return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
	}

	runs, err := listDocs[runDocument](r.store, runsKind)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	for _, doc := range runs {
		if doc.Run == nil || doc.Run.AutomationID != id {
			continue
		}

		if _, err := removeDoc(r.store, runsKind, doc.Run.ID); err != nil {
			return persistence.NewAutomationError("Delete", id, err)
		}
	}

	return nil
}

func (r *AutomationRepository) CreateVersion(_ context.Context, automationID string, def models.Definition, createdBy string) (*models.AutomationVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("CreateVersion", automationID)
	if err != nil {
		return nil, err
	}

	next := 1
	for _, v := range doc.Versions {
		next = max(next, v.Version+1)
	}

	version := &models.AutomationVersion{
		AutomationID: automationID,
		Version:      next,
		Definition:   def.Clone(),
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}

	doc.Versions = append(doc.Versions, version)

	if err := writeDoc(r.store, automationsKind, automationID, doc); err != nil {
		return nil, err
	}

	return version, nil
}

func (r *AutomationRepository) GetVersion(_ context.Context, automationID string, version int) (*models.AutomationVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("GetVersion", automationID)
	if err != nil {
		return nil, err
	}

	for _, v := range doc.Versions {
		if v.Version == version {
			return v, nil
		}
	}

	return nil, persistence.NewAutomationError("GetVersion", automationID, persistence.ErrVersionNotFound)
}

func (r *AutomationRepository) ListVersions(_ context.Context, automationID string) ([]*models.AutomationVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("ListVersions", automationID)
	if err != nil {
		return nil, err
	}

	versions := append([]*models.AutomationVersion{}, doc.Versions...)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version > versions[j].Version })

	return versions, nil
}

func (r *AutomationRepository) SetPublishedVersion(_ context.Context, automationID string, version int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("SetPublishedVersion", automationID)
	if err != nil {
		return err
	}

	found := false
	for _, v := range doc.Versions {
		if v.Version == version {
			found = true

			break
		}
	}

	if !found {
		return persistence.NewAutomationError("SetPublishedVersion", automationID, persistence.ErrVersionNotFound)
	}

	doc.Automation.PublishedVersion = &version
	doc.Automation.UpdatedAt = time.Now().UTC()

	return writeDoc(r.store, automationsKind, automationID, doc)
}

func (r *AutomationRepository) ListTriggers(_ context.Context, automationID string) ([]*models.AutomationTrigger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("ListTriggers", automationID)
	if err != nil {
		return nil, err
	}

	return append([]*models.AutomationTrigger{}, doc.Triggers...), nil
}

func (r *AutomationRepository) GetTrigger(_ context.Context, automationID, triggerID string) (*models.AutomationTrigger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, err := r.load("GetTrigger", automationID)
	if err != nil {
		return nil, err
	}

	for _, t := range doc.Triggers {
		if t.ID == triggerID {
			return t, nil
		}
	}

	return nil, persistence.NewAutomationError("GetTrigger", automationID, persistence.ErrTriggerNotFound)
}

func (r *AutomationRepository) SaveTrigger(_ context.Context, trigger *models.AutomationTrigger) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("SaveTrigger", trigger.AutomationID)
	if err != nil {
		return err
	}

	if err := stampTrigger(trigger, trigger.AutomationID); err != nil {
		return err
	}

	saved := *trigger
	replaced := false

	for i, t := range doc.Triggers {
		if t.ID == trigger.ID {
			doc.Triggers[i] = &saved
			replaced = true
		}
	}

	if !replaced {
		doc.Triggers = append(doc.Triggers, &saved)
	}

	return writeDoc(r.store, automationsKind, trigger.AutomationID, doc)
}

func (r *AutomationRepository) ReplaceTriggers(_ context.Context, automationID string, triggers []*models.AutomationTrigger) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, err := r.load("ReplaceTriggers", automationID)
	if err != nil {
		return err
	}

	doc.Triggers = make([]*models.AutomationTrigger, 0, len(triggers))

	for _, t := range triggers {
		if err := stampTrigger(t, automationID); err != nil {
			return err
		}

		saved := *t
		doc.Triggers = append(doc.Triggers, &saved)
	}

	return writeDoc(r.store, automationsKind, automationID, doc)
}

func (r *AutomationRepository) FindTriggers(_ context.Context, eventKey, workflowID, stageID string) ([]*models.AutomationTrigger, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	docs, err := listDocs[automationDocument](r.store, automationsKind)
	if err != nil {
		return nil, err
	}

	var found []*models.AutomationTrigger

	for _, doc := range docs {
		if doc.Automation == nil || !doc.Automation.Enabled {
			continue
		}

		for _, t := range doc.Triggers {
			if t.Enabled && t.Matches(eventKey, workflowID, stageID) {
				found = append(found, t)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].AutomationID == found[j].AutomationID {
			return found[i].ID < found[j].ID
		}

		return found[i].AutomationID < found[j].AutomationID
	})

	return found, nil
}

func stampTrigger(t *models.AutomationTrigger, automationID string) error {
	now := time.Now().UTC()

	if t.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		t.ID = id
	}

	t.AutomationID = automationID

	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}

	t.UpdatedAt = now

	return nil
}
