// Package testutil provides test data builders for automations, definitions and jobs.
package testutil

import (
	"github.com/dukex/stageflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) models.Node {
	node := models.Node{
		ID:       "n_" + uuid.New().String()[:10],
		Type:     "util.log",
		Position: models.Position{X: 100, Y: 200},
		Config:   map[string]any{"message": "test", "level": "info"},
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithStageTrigger configures the node as a stage-entered trigger.
func WithStageTrigger(workflowID, stageID string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = "workflow.stage_entered"
		n.Config = map[string]any{"workflow_id": workflowID, "stage_id": stageID}
	}
}

// Trigger is a stage-entered trigger node with the given ID.
func Trigger(id string) models.Node {
	return CreateTestNode(WithID(id), WithStageTrigger("wf-1", "st-2"))
}

// Action is a node of the given type with an empty config.
func Action(id, nodeType string) models.Node {
	return CreateTestNode(WithID(id), WithType(nodeType), WithConfig(map[string]any{}))
}

func Edge(from, to string) models.Edge {
	return models.Edge{From: from, To: to}
}

// BranchEdge is an edge leaving the given output of a condition node.
func BranchEdge(from, to, handle string) models.Edge {
	return models.Edge{From: from, To: to, SourceHandle: handle}
}

// Chain links ids in order.
func Chain(ids ...string) []models.Edge {
	edges := make([]models.Edge, 0, len(ids))
	for i := 1; i < len(ids); i++ {
		edges = append(edges, Edge(ids[i-1], ids[i]))
	}

	return edges
}

func CreateTestDefinition(nodes []models.Node, edges []models.Edge) models.Definition {
	return models.Definition{Nodes: nodes, Edges: edges}
}
