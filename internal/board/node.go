// Package board holds the shared node model, the diff engine and the
// validation gate for collaborative board state.
package board

// Node is the unit of board content. Content is kept as raw key/value pairs
// so payloads round-trip through JSON without loss; Type selects the schema
// it is validated against and is fixed for the node's lifetime.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  map[string]any `json:"content"`
	Children []Node         `json:"children,omitempty"`
}

// Reserved node types with engine-level semantics.
const (
	TypeUser     = "user"
	TypeSettings = "settings"
)

const (
	OpAdd    = "add"
	OpPatch  = "patch"
	OpRemove = "remove"
)

// StateAction is a single client-originated instruction prior to validation.
type StateAction struct {
	Op     string `json:"op"`
	Data   Node   `json:"data"`
	Parent string `json:"parent,omitempty"`
}

// Diff groups pending changes by verb and node type. Set is a full state
// replacement and is only used for the snapshot sent to a joining client.
type Diff struct {
	Set    map[string][]Node `json:"set,omitempty"`
	Add    map[string][]Node `json:"add,omitempty"`
	Edit   map[string][]Node `json:"edit,omitempty"`
	Remove map[string][]Node `json:"remove,omitempty"`
}

func (d Diff) Empty() bool {
	return len(d.Set) == 0 && len(d.Add) == 0 && len(d.Edit) == 0 && len(d.Remove) == 0
}

// IsSessionEvent reports whether the diff touches presence nodes only.
// Session events are broadcast to room members but never trigger
// persistence.
func (d Diff) IsSessionEvent() bool {
	if d.Empty() {
		return false
	}
	for _, bucket := range []map[string][]Node{d.Set, d.Add, d.Edit, d.Remove} {
		for nodeType := range bucket {
			if nodeType != TypeUser {
				return false
			}
		}
	}
	return true
}

// ResetPresence returns a copy of state where every user node is marked
// disconnected with no cursor. It runs when a board is materialized from
// storage and again before every write, so ephemeral presence never reaches
// durable storage.
func ResetPresence(state []Node) []Node {
	next := append([]Node(nil), state...)
	for i := range next {
		if next[i].Type != TypeUser {
			continue
		}
		content := cloneContent(next[i].Content)
		content["connected"] = false
		delete(content, "cursor")
		next[i].Content = content
	}
	return next
}

func cloneContent(content map[string]any) map[string]any {
	cloned := make(map[string]any, len(content))
	for key, value := range content {
		cloned[key] = value
	}
	return cloned
}
