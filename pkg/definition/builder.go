// Package definition turns builder form payloads into stored definitions and
// checks definitions before they are saved.
package definition

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodetypes"
)

// NodeSpacing is the vertical distance between nodes laid out by default.
const NodeSpacing = 120

// LegacyAction is one step of the linear action list used before the visual builder.
type LegacyAction struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// FormPayload is what the automation form submits. Nodes and Edges come from
// the visual builder; WorkflowID, StageID and Actions come from older forms.
type FormPayload struct {
	Nodes      []models.Node  `json:"nodes"`
	Edges      []models.Edge  `json:"edges"`
	WorkflowID string         `json:"workflow_id"`
	StageID    string         `json:"stage_id"`
	Actions    []LegacyAction `json:"actions"`
}

// Build normalises a payload. Explicit nodes or edges pass through with
// defaults filled in, even when empty; otherwise a linear chain
// t1 -> a1 -> ... -> aN is synthesised from the legacy actions.
func Build(p FormPayload) models.Definition {
	if p.Nodes != nil || p.Edges != nil {
		return passThrough(p)
	}

	return legacyChain(p)
}

func passThrough(p FormPayload) models.Definition {
	def := models.Definition{
		Nodes: make([]models.Node, 0, len(p.Nodes)),
		Edges: make([]models.Edge, 0, len(p.Edges)),
	}

	for i, n := range p.Nodes {
		if n.ID == "" {
			n.ID = NewNodeID()
		}

		if n.Type == "" {
			n.Type = nodetypes.DefaultActionType
		}

		if n.Position == (models.Position{}) {
			n.Position = models.Position{X: 0, Y: float64(i * NodeSpacing)}
		}

		if n.Config == nil {
			n.Config = map[string]any{}
		}

		def.Nodes = append(def.Nodes, n)
	}

	def.Edges = append(def.Edges, p.Edges...)

	return def
}

func legacyChain(p FormPayload) models.Definition {
	def := models.Definition{
		Nodes: []models.Node{{
			ID:       "t1",
			Type:     nodetypes.DefaultTriggerType,
			Position: models.Position{X: 0, Y: 0},
			Config:   map[string]any{"workflow_id": p.WorkflowID, "stage_id": p.StageID},
		}},
		Edges: []models.Edge{},
	}

	prev := "t1"

	for i, action := range p.Actions {
		id := "a" + strconv.Itoa(i+1)

		nodeType := action.Type
		if nodeType == "" {
			nodeType = nodetypes.DefaultActionType
		}

		config := action.Config
		if config == nil {
			config = map[string]any{}
		}

		def.Nodes = append(def.Nodes, models.Node{
			ID:       id,
			Type:     nodeType,
			Position: models.Position{X: 0, Y: float64((i + 1) * NodeSpacing)},
			Config:   config,
		})
		def.Edges = append(def.Edges, models.Edge{From: prev, To: id})
		prev = id
	}

	return def
}

// NewNodeID returns "n_" followed by 10 random hex characters.
func NewNodeID() string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)

	return "n_" + hex.EncodeToString(b)
}
