package board

import (
	"reflect"
	"testing"
)

func note(id, text string) Node {
	return Node{ID: id, Type: "note", Content: map[string]any{"text": text}}
}

func TestComputeDiffBuckets(t *testing.T) {
	actions := []StateAction{
		{Op: OpAdd, Data: note("n1", "first")},
		{Op: OpPatch, Data: Node{ID: "n2", Type: "note", Content: map[string]any{"text": "edited"}}},
		{Op: OpRemove, Data: Node{ID: "n3", Type: "text"}},
		{Op: OpAdd, Data: Node{ID: "p1", Type: "panel", Content: map[string]any{}}},
	}

	diff := ComputeDiff(actions)

	if len(diff.Add["note"]) != 1 || diff.Add["note"][0].ID != "n1" {
		t.Errorf("unexpected add bucket: %+v", diff.Add)
	}
	if len(diff.Add["panel"]) != 1 {
		t.Errorf("expected panel add, got %+v", diff.Add)
	}
	if len(diff.Edit["note"]) != 1 || diff.Edit["note"][0].Content["text"] != "edited" {
		t.Errorf("unexpected edit bucket: %+v", diff.Edit)
	}
	if len(diff.Remove["text"]) != 1 || diff.Remove["text"][0].ID != "n3" {
		t.Errorf("unexpected remove bucket: %+v", diff.Remove)
	}
}

func TestApplyDiffAddAppendsOnce(t *testing.T) {
	state := []Node{note("n1", "existing")}
	diff := ComputeDiff([]StateAction{{Op: OpAdd, Data: note("n2", "new")}})

	next := ApplyDiff(diff, state)

	if len(next) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(next))
	}
	if next[1].ID != "n2" || next[1].Content["text"] != "new" {
		t.Errorf("expected n2 appended, got %+v", next[1])
	}
}

func TestApplyDiffDuplicateAddIgnored(t *testing.T) {
	state := []Node{note("n1", "original")}
	diff := ComputeDiff([]StateAction{{Op: OpAdd, Data: note("n1", "imposter")}})

	next := ApplyDiff(diff, state)

	if len(next) != 1 {
		t.Fatalf("expected 1 node, got %d", len(next))
	}
	if next[0].Content["text"] != "original" {
		t.Errorf("duplicate add must not replace the existing node: %+v", next[0])
	}
}

func TestApplyDiffRemoveIdempotent(t *testing.T) {
	state := []Node{note("n1", "keep"), note("n2", "drop")}
	diff := Diff{Remove: map[string][]Node{"note": {{ID: "n2", Type: "note"}}}}

	once := ApplyDiff(diff, state)
	twice := ApplyDiff(diff, once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("removing an absent id must be a no-op: %+v vs %+v", once, twice)
	}
	if len(once) != 1 || once[0].ID != "n1" {
		t.Errorf("expected only n1 to remain, got %+v", once)
	}
}

func TestApplyDiffEditMergesContent(t *testing.T) {
	state := []Node{{ID: "n1", Type: "note", Content: map[string]any{"text": "hi", "color": "#ff0000"}}}
	diff := Diff{Edit: map[string][]Node{"note": {{ID: "n1", Type: "note", Content: map[string]any{"text": "hi!"}}}}}

	next := ApplyDiff(diff, state)

	if next[0].Content["text"] != "hi!" {
		t.Errorf("expected text merged, got %+v", next[0].Content)
	}
	if next[0].Content["color"] != "#ff0000" {
		t.Errorf("expected untouched field preserved, got %+v", next[0].Content)
	}
	if state[0].Content["text"] != "hi" {
		t.Errorf("input state was mutated: %+v", state[0].Content)
	}
}

func TestApplyDiffEditMissingIDIsNoop(t *testing.T) {
	state := []Node{note("n1", "hi")}
	diff := Diff{Edit: map[string][]Node{"note": {{ID: "ghost", Type: "note", Content: map[string]any{"text": "boo"}}}}}

	next := ApplyDiff(diff, state)

	if !reflect.DeepEqual(next, state) {
		t.Errorf("editing a missing id must change nothing: %+v", next)
	}
}

func TestApplyDiffLastWriterWins(t *testing.T) {
	state := []Node{note("n1", "start")}
	diff := ComputeDiff([]StateAction{
		{Op: OpPatch, Data: Node{ID: "n1", Type: "note", Content: map[string]any{"text": "first"}}},
		{Op: OpPatch, Data: Node{ID: "n1", Type: "note", Content: map[string]any{"text": "second"}}},
	})

	next := ApplyDiff(diff, state)

	if next[0].Content["text"] != "second" {
		t.Errorf("expected last writer to win, got %v", next[0].Content["text"])
	}
}

func TestApplyDiffPreservesUntouchedNodes(t *testing.T) {
	state := []Node{note("n1", "untouched"), note("x", "target")}
	diff := Diff{Edit: map[string][]Node{"note": {{ID: "x", Type: "note", Content: map[string]any{"text": "changed"}}}}}

	next := ApplyDiff(diff, state)

	if !reflect.DeepEqual(next[0], state[0]) {
		t.Errorf("node n1 must be identical to its pre-image: %+v vs %+v", next[0], state[0])
	}
}

func TestApplyDiffSetReplaces(t *testing.T) {
	state := []Node{note("old", "gone")}
	diff := SnapshotDiff([]Node{note("n1", "hi"), {ID: "u1", Type: TypeUser, Content: map[string]any{"name": "Ada"}}})

	next := ApplyDiff(diff, state)

	if len(next) != 2 {
		t.Fatalf("expected full replacement, got %+v", next)
	}
	if findNode(next, "old") >= 0 {
		t.Error("set must drop previous state")
	}
	if findNode(next, "n1") < 0 || findNode(next, "u1") < 0 {
		t.Errorf("set must carry the snapshot nodes: %+v", next)
	}
}

func TestIsSessionEvent(t *testing.T) {
	cursorOnly := Diff{Edit: map[string][]Node{TypeUser: {{ID: "u1", Type: TypeUser, Content: map[string]any{"cursor": map[string]any{"x": 1.0, "y": 2.0}}}}}}
	if !cursorOnly.IsSessionEvent() {
		t.Error("user-only diff must be a session event")
	}

	mixed := Diff{
		Edit: map[string][]Node{TypeUser: {{ID: "u1", Type: TypeUser}}},
		Add:  map[string][]Node{"note": {note("n1", "hi")}},
	}
	if mixed.IsSessionEvent() {
		t.Error("diff touching notes must not be a session event")
	}

	if (Diff{}).IsSessionEvent() {
		t.Error("empty diff is not a session event")
	}
}
