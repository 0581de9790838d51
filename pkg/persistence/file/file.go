// Package file provides a JSON file persistence implementation, used for local
// development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/stageflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	store          *store
	automationRepo *AutomationRepository
	runRepo        *RunRepository
	jobRepo        *JobRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	s := &store{root: strings.Replace(root, "file://", "", 1)}

	return &Persistence{
		store:          s,
		automationRepo: &AutomationRepository{store: s},
		runRepo:        &RunRepository{store: s},
		jobRepo:        &JobRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) AutomationRepository() persistence.AutomationRepository {
	return fp.automationRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

func (fp *Persistence) JobRepository() persistence.JobRepository {
	return fp.jobRepo
}

// store serialises every document access through one lock.
type store struct {
	root string
	mu   sync.RWMutex
}

func (s *store) path(kind, id string) string {
	return filepath.Join(s.root, kind, id+".json")
}

// validID rejects IDs that would escape the store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// readDoc returns nil without error when the document does not exist.
func readDoc[T any](s *store, kind, id string) (*T, error) {
	if !validID(id) {
		return nil, nil
	}

	b, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	var doc T
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}

	return &doc, nil
}

// writeDoc replaces the document atomically.
func writeDoc(s *store, kind, id string, doc any) error {
	if !validID(id) {
		return fmt.Errorf("invalid %s id %q", kind, id)
	}

	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return os.Rename(tmp.Name(), s.path(kind, id))
}

// removeDoc deletes a document. It reports whether the document existed.
func removeDoc(s *store, kind, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	if err := os.Remove(s.path(kind, id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to remove %s %s: %w", kind, id, err)
	}

	return true, nil
}

func listDocs[T any](s *store, kind string) ([]*T, error) {
	files, err := fs.Glob(os.DirFS(s.root), kind+"/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	docs := make([]*T, 0, len(files))

	for _, f := range files {
		id := strings.TrimSuffix(filepath.Base(f), ".json")

		doc, err := readDoc[T](s, kind, id)
		if err != nil {
			return nil, err
		}

		if doc != nil {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}
