package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"boardsync/api/internal/auth"
	"boardsync/api/internal/board"
	"boardsync/api/internal/config"
	"boardsync/api/internal/live"
	"boardsync/api/internal/room"
	"boardsync/api/internal/session"
	"boardsync/api/internal/store"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	// Opaque session tokens resolve through Redis when it is configured;
	// signed tokens always verify locally.
	var sessions *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session token resolution")
		sessions, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer sessions.Close()
	}

	secret := []byte(cfg.JWTSecret)
	verify := func(ctx context.Context, token string) (auth.Identity, error) {
		identity, err := auth.VerifyToken(secret, token)
		if err == nil {
			return identity, nil
		}
		if sessions != nil {
			return sessions.LookupSession(ctx, token)
		}
		return auth.Identity{}, err
	}

	rooms := room.NewRegistry(dataStore, cfg.PersistQuantum)
	gateway := live.NewGateway(rooms, board.DefaultRegistry(), dataStore, verify, cfg.SendDelay)

	router := mux.NewRouter()
	router.HandleFunc("/ws", gateway.HandleWS)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := dataStore.Ping(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Boardsync API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	rooms.Shutdown(shutdownCtx)
}
