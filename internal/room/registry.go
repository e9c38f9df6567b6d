package room

import (
	"context"
	"log"
	"sync"
	"time"

	"boardsync/api/internal/board"
)

// Registry owns every live room in the process. Rooms are created on first
// join and evicted when their last subscriber leaves.
type Registry struct {
	store   Store
	quantum time.Duration

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(store Store, quantum time.Duration) *Registry {
	return &Registry{
		store:   store,
		quantum: quantum,
		rooms:   make(map[string]*Room),
	}
}

// Join returns the room for boardID, materializing it from storage on first
// join, and registers the subscriber. A failed load rejects the join.
// welcome, when non-nil, runs with the state snapshot atomically with the
// subscription, before any broadcast can reach the subscriber.
func (reg *Registry) Join(ctx context.Context, boardID string, sub Subscriber, welcome func(snapshot []board.Node)) (*Room, error) {
	for {
		reg.mu.Lock()
		r, ok := reg.rooms[boardID]
		if !ok {
			r = newRoom(boardID, reg.store, reg.quantum)
			reg.rooms[boardID] = r
		}
		reg.mu.Unlock()

		if err := r.ensureLoaded(ctx); err != nil {
			reg.drop(r)
			return nil, err
		}
		if r.subscribe(sub, welcome) {
			return r, nil
		}
		// Lost a race with eviction; wait for its final flush to land so
		// the retry materializes the flushed state, not its pre-image.
		<-r.done
	}
}

// Leave removes the subscriber and evicts the room when it was the last
// one. The final flush completes while the closed room still occupies the
// registry slot, so a concurrent join cannot materialize the board from
// stale storage and later overwrite the flushed state.
func (reg *Registry) Leave(ctx context.Context, r *Room, sub Subscriber) {
	if r.unsubscribe(sub) > 0 {
		return
	}
	if !r.closeIfEmpty() {
		return
	}
	if err := r.Flush(ctx); err != nil {
		log.Printf("room %s: final flush failed: %v", r.ID, err)
	}
	reg.drop(r)
	close(r.done)
}

// Shutdown flushes every live room. Called once during process teardown,
// after the listener has stopped accepting connections.
func (reg *Registry) Shutdown(ctx context.Context) {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	for _, r := range rooms {
		if err := r.Flush(ctx); err != nil {
			log.Printf("room %s: shutdown flush failed: %v", r.ID, err)
		}
	}
}

// Active reports how many rooms are currently held in memory.
func (reg *Registry) Active() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func (reg *Registry) drop(r *Room) {
	reg.mu.Lock()
	if reg.rooms[r.ID] == r {
		delete(reg.rooms, r.ID)
	}
	reg.mu.Unlock()
}
