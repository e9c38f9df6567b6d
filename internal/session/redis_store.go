// Package session resolves opaque connection tokens to verified identities.
// Tokens are issued by the identity service and shared with this process
// through Redis; the sync engine only ever reads them.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"boardsync/api/internal/auth"
	"github.com/redis/go-redis/v9"
)

type sessionData struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore looks up websocket session tokens in Redis, keyed by token
// hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "wssession:"}, nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "wssession:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// SaveSession stores a session token for an identity with the given TTL.
func (s *RedisStore) SaveSession(ctx context.Context, token string, identity auth.Identity, ttl time.Duration) error {
	data := sessionData{
		UserID:    identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		CreatedAt: time.Now(),
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(auth.HashToken(token)), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LookupSession resolves a session token to the identity behind it.
func (s *RedisStore) LookupSession(ctx context.Context, token string) (auth.Identity, error) {
	jsonData, err := s.client.Get(ctx, s.key(auth.HashToken(token))).Result()
	if err == redis.Nil {
		return auth.Identity{}, fmt.Errorf("session not found or expired")
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("lookup session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return auth.Identity{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return auth.Identity{ID: data.UserID, Name: data.Name, Email: data.Email}, nil
}

// RevokeSession deletes a session token.
func (s *RedisStore) RevokeSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(auth.HashToken(token))).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
