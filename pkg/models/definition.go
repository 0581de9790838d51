package models

// Definition is the stored graph of one automation version.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one vertex of a definition. Type selects the runner; the category
// (trigger, action, logic) comes from the node type registry and is not stored.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Config   map[string]any `json:"config"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge connects two nodes. SourceHandle selects the branch output of a node
// with several outgoing paths, such as the true/false outputs of a condition.
type Edge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// NodeByID returns the node with the given ID.
func (d Definition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return Node{}, false
}

// NodesOfType returns the nodes of the given type in definition order.
func (d Definition) NodesOfType(nodeType string) []Node {
	var nodes []Node

	for _, n := range d.Nodes {
		if n.Type == nodeType {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// Clone returns a deep copy so stored versions cannot be mutated through a
// shared map.
func (d Definition) Clone() Definition {
	out := Definition{
		Nodes: make([]Node, len(d.Nodes)),
		Edges: make([]Edge, len(d.Edges)),
	}

	for i, n := range d.Nodes {
		n.Config = cloneMap(n.Config)
		out.Nodes[i] = n
	}

	copy(out.Edges, d.Edges)

	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))

	for k, v := range in {
		switch val := v.(type) {
		case map[string]any:
			out[k] = cloneMap(val)
		case []any:
			items := make([]any, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]any); ok {
					items[i] = cloneMap(m)
				} else {
					items[i] = item
				}
			}

			out[k] = items
		default:
			out[k] = v
		}
	}

	return out
}
