// Package live accepts websocket connections, runs the join protocol and
// fans room diffs out to connected sessions.
package live

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"boardsync/api/internal/auth"
	"boardsync/api/internal/board"
	"boardsync/api/internal/room"
	"boardsync/api/internal/store"
	"github.com/gorilla/websocket"
)

// TokenVerifier resolves a connection token to an identity. Wired to JWT
// verification, optionally falling back to the Redis session store.
type TokenVerifier func(ctx context.Context, token string) (auth.Identity, error)

// MembershipStore is the durable membership surface the join protocol and
// the control messages consume.
type MembershipStore interface {
	GetMembership(ctx context.Context, boardID, userID string) (*store.Membership, error)
	ListAdmins(ctx context.Context, boardID string) ([]string, error)
	RecordJoin(ctx context.Context, userID, boardID string) error
	SetVisibility(ctx context.Context, boardID, userID string, visible bool) error
	UpdateBoardName(ctx context.Context, boardID, name string) error
}

type Gateway struct {
	rooms     *room.Registry
	registry  *board.Registry
	members   MembershipStore
	verify    TokenVerifier
	sendDelay time.Duration
	upgrader  websocket.Upgrader
}

func NewGateway(rooms *room.Registry, registry *board.Registry, members MembershipStore, verify TokenVerifier, sendDelay time.Duration) *Gateway {
	return &Gateway{
		rooms:     rooms,
		registry:  registry,
		members:   members,
		verify:    verify,
		sendDelay: sendDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS authenticates the upgrade request and runs the connection until
// it closes. Auth failure rejects the handshake outright; no session is
// created.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := g.verify(r.Context(), connectionToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	newClient(g, conn, identity).run()
}

func connectionToken(r *http.Request) string {
	if cookie, err := r.Cookie("auth"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
