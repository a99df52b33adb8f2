// Package store provides storage backends for EcoHearing session
// snapshots.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum reuse time of a connection
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists session snapshots in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) SaveSession(sess Session) error {
	answers, log, payload, err := marshalSessionColumns(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, phase, current_step_id, answers, log, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET phase=EXCLUDED.phase, current_step_id=EXCLUDED.current_step_id,
			answers=EXCLUDED.answers, log=EXCLUDED.log, payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		sess.ID, sess.Phase, sess.CurrentStepID, answers, log, payload, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "session", sess.ID, "phase", sess.Phase)
	return nil
}

func (s *PostgresStore) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT id, phase, current_step_id, answers, log, payload, created_at, updated_at FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return sess, nil
}

func (s *PostgresStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
