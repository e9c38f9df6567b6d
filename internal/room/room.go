// Package room holds the per-board authoritative state, its subscribers and
// the debounced write-back to storage.
package room

import (
	"context"
	"log"
	"sync"
	"time"

	"boardsync/api/internal/board"
)

// Store is the persistence surface a room consumes.
type Store interface {
	GetBoardDocument(ctx context.Context, boardID string) ([]board.Node, error)
	SaveBoardDocument(ctx context.Context, boardID string, nodes []board.Node) error
}

// Subscriber receives broadcast messages. Live sessions implement it; the
// room only holds these handles for fan-out, it never owns them.
type Subscriber interface {
	Deliver(message any)
}

// Room is the single source of truth for one board while anyone is
// connected to it.
type Room struct {
	ID string

	store   Store
	quantum time.Duration

	loadOnce sync.Once
	loadErr  error

	mu          sync.Mutex
	nodes       []board.Node
	subscribers map[Subscriber]struct{}
	dirty       bool
	timerSet    bool
	closed      bool

	// Closed by the registry once the eviction flush has landed. Joins that
	// lose the race against eviction wait on it before re-materializing.
	done chan struct{}
}

func newRoom(id string, store Store, quantum time.Duration) *Room {
	return &Room{
		ID:          id,
		store:       store,
		quantum:     quantum,
		subscribers: make(map[Subscriber]struct{}),
		done:        make(chan struct{}),
	}
}

func (r *Room) ensureLoaded(ctx context.Context) error {
	r.loadOnce.Do(func() {
		nodes, err := r.store.GetBoardDocument(ctx, r.ID)
		if err != nil {
			r.loadErr = err
			return
		}
		r.mu.Lock()
		r.nodes = board.ResetPresence(nodes)
		r.mu.Unlock()
	})
	return r.loadErr
}

// Nodes returns the current snapshot. Callers must treat it as read-only;
// every mutation goes through Update.
func (r *Room) Nodes() []board.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes
}

// Update swaps the state for fn's result. Durable updates arm the trailing
// persistence timer; session events do not.
func (r *Room) Update(fn func([]board.Node) []board.Node, durable bool) {
	r.mu.Lock()
	r.nodes = fn(r.nodes)
	if durable {
		r.dirty = true
		r.scheduleLocked()
	}
	r.mu.Unlock()
}

// Apply applies a diff to the room state. Presence-only diffs are treated
// as session events and skip persistence.
func (r *Room) Apply(diff board.Diff) {
	r.Update(func(state []board.Node) []board.Node {
		return board.ApplyDiff(diff, state)
	}, !diff.IsSessionEvent())
}

// scheduleLocked arms the write-back timer unless one is already pending.
// Writes happen at most once per quantum and always carry the latest state
// at the tick.
func (r *Room) scheduleLocked() {
	if r.timerSet || r.closed {
		return
	}
	r.timerSet = true
	time.AfterFunc(r.quantum, r.persistTick)
}

func (r *Room) persistTick() {
	r.mu.Lock()
	r.timerSet = false
	if r.closed || !r.dirty {
		r.mu.Unlock()
		return
	}
	r.dirty = false
	snapshot := r.nodes
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.SaveBoardDocument(ctx, r.ID, board.ResetPresence(snapshot)); err != nil {
		// State lives in memory; mark dirty again and retry next quantum.
		log.Printf("room %s: persist failed, retrying next tick: %v", r.ID, err)
		r.mu.Lock()
		r.dirty = true
		r.scheduleLocked()
		r.mu.Unlock()
	}
}

// Flush writes the current state immediately, regardless of the timer.
// Called on eviction so the tail of edits survives.
func (r *Room) Flush(ctx context.Context) error {
	r.mu.Lock()
	r.dirty = false
	snapshot := r.nodes
	r.mu.Unlock()
	return r.store.SaveBoardDocument(ctx, r.ID, board.ResetPresence(snapshot))
}

// Broadcast queues a message on every subscriber except the originator.
func (r *Room) Broadcast(message any, except Subscriber) {
	r.mu.Lock()
	targets := make([]Subscriber, 0, len(r.subscribers))
	for sub := range r.subscribers {
		if sub != except {
			targets = append(targets, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range targets {
		sub.Deliver(message)
	}
}

// subscribe registers the subscriber, first invoking welcome with the
// current state. Both happen under the lock broadcasts collect their
// targets under, so anything welcome enqueues is ordered before every
// later broadcast, and every edit missing from the snapshot still reaches
// the subscriber as a broadcast.
func (r *Room) subscribe(sub Subscriber, welcome func(snapshot []board.Node)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if welcome != nil {
		welcome(r.nodes)
	}
	r.subscribers[sub] = struct{}{}
	return true
}

func (r *Room) unsubscribe(sub Subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, sub)
	return len(r.subscribers)
}

// closeIfEmpty marks the room closed when no subscriber is left, stopping
// future scheduled writes. Returns false if someone joined in the meantime.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subscribers) > 0 {
		return false
	}
	r.closed = true
	return true
}
