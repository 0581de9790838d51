package definition

import (
	"errors"
	"fmt"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
)

var (
	ErrEmptyNodeID     = errors.New("node id is empty")
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

// Validate enforces the structural invariants of a stored definition: every
// node has a non-empty ID unique within the definition.
func Validate(def models.Definition) error {
	var errs []error

	seen := make(map[string]bool, len(def.Nodes))

	for i, n := range def.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("%w: node at index %d", ErrEmptyNodeID, i))

			continue
		}

		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID))
		}

		seen[n.ID] = true
	}

	return errors.Join(errs...)
}

// Lint returns warnings that do not block saving a definition: edges pointing
// at missing nodes, unknown node types, config schema violations and graphs
// that no trigger can start.
func Lint(def models.Definition, types *nodetypes.Registry) []string {
	warnings := []string{}
	ids := make(map[string]bool, len(def.Nodes))
	hasTrigger := false

	for _, n := range def.Nodes {
		ids[n.ID] = true

		d, ok := types.Get(n.Type)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("node %s: unknown type %q", n.ID, n.Type))

			continue
		}

		if d.Category == models.CategoryTypeTrigger {
			hasTrigger = true
		}

		for _, msg := range types.ValidateConfig(n.Type, n.Config) {
			warnings = append(warnings, fmt.Sprintf("node %s: %s", n.ID, msg))
		}
	}

	for i, e := range def.Edges {
		switch {
		case e.From == "" || e.To == "":
			warnings = append(warnings, fmt.Sprintf("edge %d: missing endpoint", i))
		case !ids[e.From]:
			warnings = append(warnings, fmt.Sprintf("edge %d: unknown source node %q", i, e.From))
		case !ids[e.To]:
			warnings = append(warnings, fmt.Sprintf("edge %d: unknown target node %q", i, e.To))
		}
	}

	if len(def.Nodes) > 0 && !hasTrigger {
		warnings = append(warnings, "definition has no trigger node")
	}

	return warnings
}
