package board

import "boardsync/api/internal/util"

// Validate turns a batch of untrusted actions into trusted ones. Invalid
// actions are dropped individually; the survivors keep their arrival order.
// It is a pure function of its inputs and the bound registry, with one
// exception: add actions arriving without an id are assigned a fresh one.
func Validate(registry *Registry, actions []StateAction, state []Node, viewer Viewer) []StateAction {
	accepted := make([]StateAction, 0, len(actions))
	for _, action := range actions {
		cleaned, ok := validateAction(registry, action, state, viewer)
		if !ok {
			continue
		}
		accepted = append(accepted, cleaned)
	}
	return accepted
}

func validateAction(registry *Registry, action StateAction, state []Node, viewer Viewer) (StateAction, bool) {
	switch action.Op {
	case OpAdd, OpPatch, OpRemove:
	default:
		return StateAction{}, false
	}
	if action.Data.Type == "" {
		return StateAction{}, false
	}

	nodeType, registered := registry.Lookup(action.Data.Type)
	if !registered {
		return StateAction{}, false
	}

	switch action.Op {
	case OpAdd:
		if action.Data.ID == "" {
			action.Data.ID = util.NewID()
		}
		if findNode(state, action.Data.ID) >= 0 {
			return StateAction{}, false
		}
		cleaned, ok := nodeType.AddSpec.Clean(action.Data.Content, false)
		if !ok {
			return StateAction{}, false
		}
		action.Data.Content = cleaned

	case OpPatch:
		if !targetExists(state, action.Data) {
			return StateAction{}, false
		}
		cleaned, ok := nodeType.PatchSpec.Clean(action.Data.Content, true)
		if !ok {
			return StateAction{}, false
		}
		action.Data.Content = cleaned

	case OpRemove:
		if !targetExists(state, action.Data) {
			return StateAction{}, false
		}
		action.Data = Node{ID: action.Data.ID, Type: action.Data.Type}
	}

	if nodeType.Custom != nil && !nodeType.Custom(action, state, viewer) {
		return StateAction{}, false
	}
	return action, true
}

func targetExists(state []Node, target Node) bool {
	index := findNode(state, target.ID)
	return index >= 0 && state[index].Type == target.Type
}
