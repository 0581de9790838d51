// Package nodetypes is the lookup table from a node type string to its
// metadata: category, trigger event key and config schema.
package nodetypes

import (
	"fmt"
	"sort"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Descriptor describes one node type.
type Descriptor struct {
	Type        string              `json:"type"`
	Category    models.CategoryType `json:"category"`
	Label       string              `json:"label"`
	Description string              `json:"description"`
	EventKey    string              `json:"event_key,omitempty"`
	Schema      map[string]any      `json:"schema,omitempty"`
}

// Group is one category of node types as rendered by the builder UI.
type Group struct {
	Category models.CategoryType `json:"category"`
	Label    string              `json:"label"`
	Types    []Descriptor        `json:"types"`
}

// Registry is immutable after construction.
type Registry struct {
	byType map[string]Descriptor
}

// NewRegistry builds a registry from descs. A later descriptor with the same
// type replaces an earlier one.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{byType: make(map[string]Descriptor, len(descs))}

	for _, d := range descs {
		r.byType[d.Type] = d
	}

	return r
}

// Get returns the descriptor of nodeType.
func (r *Registry) Get(nodeType string) (Descriptor, bool) {
	d, ok := r.byType[nodeType]

	return d, ok
}

// Category returns the category of nodeType. Unknown types are treated as
// actions so the engine reports them as missing runners.
func (r *Registry) Category(nodeType string) models.CategoryType {
	if d, ok := r.byType[nodeType]; ok {
		return d.Category
	}

	return models.CategoryTypeAction
}

// EventKeyForTrigger returns the domain event key a trigger type listens on.
func (r *Registry) EventKeyForTrigger(nodeType string) (string, bool) {
	d, ok := r.byType[nodeType]
	if !ok || d.Category != models.CategoryTypeTrigger || d.EventKey == "" {
		return "", false
	}

	return d.EventKey, true
}

// TriggerTypesForEvent returns the trigger types bound to eventKey, sorted.
func (r *Registry) TriggerTypesForEvent(eventKey string) []string {
	var types []string

	for _, d := range r.byType {
		if d.Category == models.CategoryTypeTrigger && d.EventKey == eventKey {
			types = append(types, d.Type)
		}
	}

	sort.Strings(types)

	return types
}

var groupOrder = []struct {
	category models.CategoryType
	label    string
}{
	{models.CategoryTypeTrigger, "Disparadores"},
	{models.CategoryTypeLogic, "Lógica"},
	{models.CategoryTypeAction, "Acciones"},
}

// Grouped returns the registry grouped by category (trigger, logic, action),
// each group sorted by label. Empty groups are omitted.
func (r *Registry) Grouped() []Group {
	groups := make([]Group, 0, len(groupOrder))

	for _, g := range groupOrder {
		var types []Descriptor

		for _, d := range r.byType {
			if d.Category == g.category {
				types = append(types, d)
			}
		}

		if len(types) == 0 {
			continue
		}

		sort.Slice(types, func(i, j int) bool {
			if types[i].Label == types[j].Label {
				return types[i].Type < types[j].Type
			}

			return types[i].Label < types[j].Label
		})

		groups = append(groups, Group{Category: g.category, Label: g.label, Types: types})
	}

	return groups
}

// ValidateConfig checks config against the schema of nodeType and returns one
// message per violation. Types without a schema always pass.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) []string {
	d, ok := r.byType[nodeType]
	if !ok || len(d.Schema) == 0 {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(d.Schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %v", err)}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}

	return messages
}
