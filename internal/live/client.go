package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"boardsync/api/internal/auth"
	"boardsync/api/internal/board"
	"boardsync/api/internal/rbac"
	"boardsync/api/internal/room"
	"github.com/gorilla/websocket"
)

const (
	msgSetState     = "setState"
	msgSetBoardName = "setBoardName"
	msgSetVisible   = "setVisible"
)

type stateMessage struct {
	Type string     `json:"type"`
	Data board.Diff `json:"data"`
}

type boardNameMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type controlMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

type batchEntry struct {
	action  *board.StateAction
	control *controlMessage
}

// Client is one authenticated connection's server-side representative. It
// owns its transport and outbound queue; the room only holds it as a
// broadcast handle.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	user    auth.Identity

	// Touched only by the read loop goroutine.
	room    *room.Room
	role    rbac.Role
	isOwner bool

	sendMu   sync.Mutex
	pending  []any
	flushSet bool
	writeMu  sync.Mutex
}

func newClient(g *Gateway, conn *websocket.Conn, user auth.Identity) *Client {
	return &Client{gateway: g, conn: conn, user: user}
}

func (c *Client) run() {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(data)
	}
}

// Deliver queues a message for this session. Messages accumulate and are
// flushed as one frame a short delay after the first enqueue, bounding the
// frame count under bursty edit storms.
func (c *Client) Deliver(message any) {
	c.sendMu.Lock()
	c.pending = append(c.pending, message)
	armed := c.flushSet
	c.flushSet = true
	c.sendMu.Unlock()

	if !armed {
		time.AfterFunc(c.gateway.sendDelay, c.flushPending)
	}
}

func (c *Client) flushPending() {
	c.sendMu.Lock()
	batch := c.pending
	c.pending = nil
	c.flushSet = false
	c.sendMu.Unlock()

	if len(batch) == 0 {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(batch); err != nil {
		// The read loop observes the broken connection and tears down.
		log.Printf("write to %s failed: %v", c.user.ID, err)
	}
}

func (c *Client) handleFrame(data []byte) {
	if c.room == nil {
		var join struct {
			Action  string `json:"action"`
			BoardID string `json:"boardId"`
		}
		if err := json.Unmarshal(data, &join); err != nil || join.Action != "join" || join.BoardID == "" {
			return
		}
		if err := c.join(join.BoardID); err != nil {
			log.Printf("join %s by %s rejected: %v", join.BoardID, c.user.ID, err)
			c.conn.Close()
		}
		return
	}

	entries, ok := parseBatch(data)
	if !ok {
		// Malformed frame; drop it, the connection stays open.
		return
	}
	c.handleBatch(entries)
}

func (c *Client) join(boardID string) error {
	ctx := context.Background()

	// The snapshot is captured and queued atomically with the subscription,
	// so every later edit reaches this session strictly after the snapshot
	// it is missing from. It also predates our own presence merge; the
	// joining client already knows itself, it needs everyone else.
	var snapshot []board.Node
	r, err := c.gateway.rooms.Join(ctx, boardID, c, func(state []board.Node) {
		snapshot = state
		c.Deliver(stateMessage{Type: msgSetState, Data: board.SnapshotDiff(state)})
	})
	if err != nil {
		return err
	}
	c.room = r

	// Fire-and-forget: a first join may legitimately read no membership row
	// yet and default to invisible.
	go func() {
		if err := c.gateway.members.RecordJoin(context.Background(), c.user.ID, boardID); err != nil {
			log.Printf("record join %s/%s: %v", boardID, c.user.ID, err)
		}
	}()

	visible := false
	c.role = rbac.RoleMember
	if membership, err := c.gateway.members.GetMembership(ctx, boardID, c.user.ID); err != nil {
		log.Printf("load membership %s/%s: %v", boardID, c.user.ID, err)
	} else if membership != nil {
		visible = membership.Visible
		c.role = rbac.Normalize(membership.Role)
	}

	admins, err := c.gateway.members.ListAdmins(ctx, boardID)
	if err != nil {
		log.Printf("list admins %s: %v", boardID, err)
	}
	c.isOwner = false
	for _, admin := range admins {
		if admin == c.user.ID {
			c.isOwner = true
		}
	}

	userNode := board.Node{
		ID:   c.user.ID,
		Type: board.TypeUser,
		Content: map[string]any{
			"name":      c.user.Name,
			"visible":   visible,
			"connected": true,
			"cursor":    nil,
		},
	}
	presenceDiff := board.Diff{Add: map[string][]board.Node{board.TypeUser: {userNode}}}
	if hasNode(snapshot, c.user.ID) {
		presenceDiff = board.Diff{Edit: map[string][]board.Node{board.TypeUser: {userNode}}}
	}
	r.Apply(presenceDiff)
	r.Broadcast(stateMessage{Type: msgSetState, Data: presenceDiff}, c)
	return nil
}

func (c *Client) handleBatch(entries []batchEntry) {
	actions := make([]board.StateAction, 0, len(entries))
	for _, entry := range entries {
		if entry.action != nil {
			actions = append(actions, *entry.action)
		}
	}
	actions = coalesceCursorMoves(actions)

	viewer := board.Viewer{UserID: c.user.ID, IsAdmin: c.isOwner || c.role == rbac.RoleAdmin}
	accepted := board.Validate(c.gateway.registry, actions, c.room.Nodes(), viewer)
	if len(accepted) > 0 {
		diff := board.ComputeDiff(accepted)
		c.room.Apply(diff)
		c.room.Broadcast(stateMessage{Type: msgSetState, Data: diff}, c)
	}

	for _, entry := range entries {
		if entry.control != nil {
			c.handleControl(*entry.control)
		}
	}
}

func (c *Client) handleControl(control controlMessage) {
	ctx := context.Background()
	switch control.Type {
	case msgSetBoardName:
		if !c.isOwner && !rbac.Can(c.role, rbac.ActionRename) {
			return
		}
		if err := c.gateway.members.UpdateBoardName(ctx, c.room.ID, control.Name); err != nil {
			log.Printf("rename board %s: %v", c.room.ID, err)
			return
		}
		c.room.Broadcast(boardNameMessage{Type: msgSetBoardName, Name: control.Name}, c)

	case msgSetVisible:
		diff := board.Diff{Edit: map[string][]board.Node{board.TypeUser: {{
			ID:      c.user.ID,
			Type:    board.TypeUser,
			Content: map[string]any{"visible": control.Visible},
		}}}}
		c.room.Apply(diff)
		c.room.Broadcast(stateMessage{Type: msgSetState, Data: diff}, c)
		if err := c.gateway.members.SetVisibility(ctx, c.room.ID, c.user.ID, control.Visible); err != nil {
			log.Printf("set visibility %s/%s: %v", c.room.ID, c.user.ID, err)
		}
	}
}

func (c *Client) close() {
	c.conn.Close()
	r := c.room
	if r == nil {
		return
	}
	c.room = nil

	diff := board.Diff{Edit: map[string][]board.Node{board.TypeUser: {{
		ID:      c.user.ID,
		Type:    board.TypeUser,
		Content: map[string]any{"connected": false, "cursor": nil},
	}}}}
	r.Apply(diff)
	r.Broadcast(stateMessage{Type: msgSetState, Data: diff}, c)

	c.gateway.rooms.Leave(context.Background(), r, c)
}

// parseBatch decodes an inbound edit frame. The frame must be a JSON array;
// entries that are neither actions nor known controls are skipped.
func parseBatch(data []byte) ([]batchEntry, bool) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, false
	}

	entries := make([]batchEntry, 0, len(raws))
	for _, raw := range raws {
		var probe struct {
			Op   string `json:"op"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		switch {
		case probe.Op != "":
			var action board.StateAction
			if err := json.Unmarshal(raw, &action); err != nil {
				continue
			}
			entries = append(entries, batchEntry{action: &action})
		case probe.Type == msgSetBoardName || probe.Type == msgSetVisible:
			var control controlMessage
			if err := json.Unmarshal(raw, &control); err != nil {
				continue
			}
			entries = append(entries, batchEntry{control: &control})
		}
	}
	return entries, true
}

// isCursorMove reports whether an action is a pure cursor/viewport patch on
// a presence node.
func isCursorMove(action board.StateAction) bool {
	if action.Op != board.OpPatch || action.Data.Type != board.TypeUser {
		return false
	}
	if len(action.Data.Content) == 0 {
		return false
	}
	for field := range action.Data.Content {
		switch field {
		case "cursor", "position", "zoom":
		default:
			return false
		}
	}
	return true
}

// coalesceCursorMoves keeps only the last cursor move of a frame; earlier
// ones are superseded before validation ever sees them.
func coalesceCursorMoves(actions []board.StateAction) []board.StateAction {
	last := -1
	for i, action := range actions {
		if isCursorMove(action) {
			last = i
		}
	}
	if last < 0 {
		return actions
	}

	kept := make([]board.StateAction, 0, len(actions))
	for i, action := range actions {
		if isCursorMove(action) && i != last {
			continue
		}
		kept = append(kept, action)
	}
	return kept
}

func hasNode(state []board.Node, id string) bool {
	for _, node := range state {
		if node.ID == id {
			return true
		}
	}
	return false
}
