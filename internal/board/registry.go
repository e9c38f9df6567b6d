package board

// Viewer carries the identity facts validation needs about the acting user.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// CustomValidator enforces rules plain schemas cannot express, such as
// permission gates or singleton constraints. It runs after the schema check
// on the already-cleaned action.
type CustomValidator func(action StateAction, state []Node, viewer Viewer) bool

// NodeType bundles everything the engine knows about one node type.
type NodeType struct {
	AddSpec   Spec
	PatchSpec Spec
	Custom    CustomValidator
}

// Registry maps node type names to their capability bundles. It is built
// once at startup; actions referencing unregistered types are rejected.
type Registry struct {
	types map[string]NodeType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]NodeType)}
}

// Register adds a node type. When no patch spec is given it is derived as
// the partial of the add spec.
func (r *Registry) Register(name string, nodeType NodeType) {
	if nodeType.PatchSpec == nil {
		nodeType.PatchSpec = nodeType.AddSpec.Partial()
	}
	r.types[name] = nodeType
}

func (r *Registry) Lookup(name string) (NodeType, bool) {
	nodeType, ok := r.types[name]
	return nodeType, ok
}

var commonSpec = Spec{
	"position": Point(),
	"layer":    Number(),
	"width":    Number(),
	"height":   Number(),
	"rotation": Number(),
}

func withCommon(spec Spec) Spec {
	merged := make(Spec, len(spec)+len(commonSpec))
	for name, field := range commonSpec {
		merged[name] = field
	}
	for name, field := range spec {
		merged[name] = field
	}
	return merged
}

// DefaultRegistry returns the registry with every node type the board
// supports.
func DefaultRegistry() *Registry {
	registry := NewRegistry()

	voteCheck := Object(Spec{
		"userId": required(String(255)),
		"vote":   required(Number()),
	})
	emojiCheck := Object(Spec{
		"unicode":  required(String(255)),
		"position": required(Point()),
	})
	drawingCheck := Object(Spec{
		"color": required(String(7)),
		"size":  required(Number()),
		"x":     required(Number()),
		"y":     required(Number()),
		"nX":    required(Number()),
		"nY":    required(Number()),
	})

	registry.Register("note", NodeType{
		AddSpec: withCommon(Spec{
			"text":    required(String(140)),
			"ownerId": String(255),
			"color":   String(7),
			"votes":   List(voteCheck),
			"emojis":  List(emojiCheck),
			"drawing": List(drawingCheck),
		}),
	})

	registry.Register("group", NodeType{
		AddSpec: withCommon(Spec{
			"title":  String(255),
			"votes":  List(voteCheck),
			"unfold": Bool(),
		}),
	})

	registry.Register("panel", NodeType{
		AddSpec: withCommon(Spec{
			"title": String(255),
			"color": String(7),
		}),
	})

	registry.Register("image", NodeType{
		AddSpec: withCommon(Spec{
			"url": required(String(1000)),
		}),
	})

	registry.Register("text", NodeType{
		AddSpec: withCommon(Spec{
			"text": required(String(1000)),
			"size": Number(),
		}),
	})

	registry.Register("vector", NodeType{
		AddSpec: withCommon(Spec{
			"url": required(String(1000)),
		}),
	})

	registry.Register("estimation", NodeType{
		AddSpec: withCommon(Spec{
			"scale": String(255),
			"step":  Number(),
			"stories": List(Object(Spec{
				"id":          required(String(255)),
				"title":       required(String(1000)),
				"description": String(1000),
			})),
		}),
	})

	settingsSpec := Spec{
		"anonymousMode": Bool(),
	}
	registry.Register(TypeSettings, NodeType{
		AddSpec:   settingsSpec,
		PatchSpec: settingsSpec.Partial(),
		Custom:    validateSettings,
	})

	userSpec := Spec{
		"name":      String(255),
		"visible":   Bool(),
		"connected": Bool(),
		"cursor":    NullablePoint(),
		"position":  Point(),
		"zoom":      Number(),
	}
	registry.Register(TypeUser, NodeType{
		AddSpec:   userSpec,
		PatchSpec: userSpec.Partial(),
		Custom:    validateUser,
	})

	return registry
}

// validateSettings keeps the settings node a singleton only admins may
// touch.
func validateSettings(action StateAction, state []Node, viewer Viewer) bool {
	if !viewer.IsAdmin {
		return false
	}
	if action.Op == OpAdd {
		for _, node := range state {
			if node.Type == TypeSettings {
				return false
			}
		}
	}
	return true
}

// validateUser restricts presence nodes to owner patches. The engine itself
// adds and removes them as sessions come and go.
func validateUser(action StateAction, state []Node, viewer Viewer) bool {
	return action.Op == OpPatch && action.Data.ID == viewer.UserID
}
