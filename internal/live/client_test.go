package live

import (
	"testing"

	"boardsync/api/internal/board"
)

func cursorPatch(x, y float64) board.StateAction {
	return board.StateAction{
		Op: board.OpPatch,
		Data: board.Node{ID: "u1", Type: board.TypeUser, Content: map[string]any{
			"cursor": map[string]any{"x": x, "y": y},
		}},
	}
}

func TestCoalesceCursorMovesKeepsLast(t *testing.T) {
	notePatch := board.StateAction{
		Op:   board.OpPatch,
		Data: board.Node{ID: "n1", Type: "note", Content: map[string]any{"text": "hi"}},
	}
	actions := []board.StateAction{
		cursorPatch(1, 1),
		notePatch,
		cursorPatch(2, 2),
		cursorPatch(3, 3),
	}

	kept := coalesceCursorMoves(actions)

	if len(kept) != 2 {
		t.Fatalf("expected 2 actions after coalescing, got %d", len(kept))
	}
	if kept[0].Data.ID != "n1" {
		t.Errorf("note patch must survive, got %+v", kept[0])
	}
	cursor := kept[1].Data.Content["cursor"].(map[string]any)
	if cursor["x"] != 3.0 {
		t.Errorf("only the last cursor move must survive, got %+v", cursor)
	}
}

func TestCoalesceCursorMovesNoMoves(t *testing.T) {
	actions := []board.StateAction{{
		Op:   board.OpAdd,
		Data: board.Node{ID: "n1", Type: "note", Content: map[string]any{"text": "hi"}},
	}}

	kept := coalesceCursorMoves(actions)
	if len(kept) != 1 {
		t.Errorf("non-cursor batch must pass through, got %+v", kept)
	}
}

func TestIsCursorMoveRejectsMixedPatch(t *testing.T) {
	mixed := board.StateAction{
		Op: board.OpPatch,
		Data: board.Node{ID: "u1", Type: board.TypeUser, Content: map[string]any{
			"cursor":  map[string]any{"x": 1.0, "y": 1.0},
			"visible": true,
		}},
	}
	if isCursorMove(mixed) {
		t.Error("patch touching visible is not a pure cursor move")
	}
}

func TestParseBatchMalformed(t *testing.T) {
	if _, ok := parseBatch([]byte("not json")); ok {
		t.Error("garbage must not parse")
	}
	if _, ok := parseBatch([]byte(`{"op":"add"}`)); ok {
		t.Error("a non-array frame must not parse")
	}
}

func TestParseBatchSkipsUnknownEntries(t *testing.T) {
	frame := []byte(`[
		{"op":"add","data":{"id":"n1","type":"note","content":{"text":"hi"}}},
		{"something":"else"},
		{"type":"setBoardName","name":"Renamed"},
		42
	]`)

	entries, ok := parseBatch(frame)
	if !ok {
		t.Fatal("array frame must parse")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 usable entries, got %d", len(entries))
	}
	if entries[0].action == nil || entries[0].action.Data.ID != "n1" {
		t.Errorf("expected add action first, got %+v", entries[0])
	}
	if entries[1].control == nil || entries[1].control.Name != "Renamed" {
		t.Errorf("expected rename control second, got %+v", entries[1])
	}
}
