// Package store provides storage backends for EcoHearing session
// snapshots.
//
// This file implements a Redis-backed store holding each session as a
// JSON blob under a TTL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an abandoned session snapshot lives in
// Redis.
const DefaultSessionTTL = 24 * time.Hour

const redisKeyPrefix = "ecohearing:session:"

// RedisStore persists session snapshots in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis store based on provided options.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "addr_set", cfg.RedisAddr != "")

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address not set")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, err
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) SaveSession(sess Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(context.Background(), redisKeyPrefix+sess.ID, b, s.ttl).Err(); err != nil {
		slog.Error("RedisStore SaveSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	slog.Debug("RedisStore SaveSession succeeded", "session", sess.ID, "phase", sess.Phase)
	return nil
}

func (s *RedisStore) GetSession(id string) (*Session, error) {
	b, err := s.client.Get(context.Background(), redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s failed: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) DeleteSession(id string) error {
	if err := s.client.Del(context.Background(), redisKeyPrefix+id).Err(); err != nil {
		slog.Error("RedisStore DeleteSession failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
