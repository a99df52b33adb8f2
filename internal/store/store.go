// Package store provides storage backends for EcoHearing session
// snapshots.
//
// It includes an in-memory store (the default; sessions are ephemeral) and
// SQLite, PostgreSQL, and Redis backends behind the same interface.
package store

import (
	"sync"
	"time"

	"github.com/ecohearing/EcoHearing/internal/models"
)

// Session is a snapshot of one hearing session: its phase, cursor, the
// accepted answers, the exchange log, and the completion payload once
// present.
type Session struct {
	ID            string                 `json:"id"`
	Phase         string                 `json:"phase"`
	CurrentStepID int                    `json:"current_step_id,omitempty"`
	Answers       map[int]models.Answer  `json:"answers,omitempty"`
	Log           []models.ExchangeEntry `json:"log,omitempty"`
	Payload       *models.Payload        `json:"payload,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Store persists session snapshots. GetSession returns (nil, nil) for an
// unknown id.
type Store interface {
	SaveSession(s Session) error
	GetSession(id string) (*Session, error)
	DeleteSession(id string) error
}

// Opts holds configuration applied via Option values.
type Opts struct {
	DSN       string
	RedisAddr string
	TTL       time.Duration
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithSessionTTL bounds how long a snapshot may live in backends that
// support expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// InMemoryStore keeps session snapshots in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]Session)}
}

func (s *InMemoryStore) SaveSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
