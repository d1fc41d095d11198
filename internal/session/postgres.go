// Package session provides storage backends for WhatsBill conversation sessions.
//
// This file implements the PostgreSQL-backed session store.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres session store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
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
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres session store ready")

	return &PostgresStore{db: db}, nil
}

// Get returns the session for an identity, or nil if none exists.
func (s *PostgresStore) Get(identity string) (*models.Session, error) {
	query := `SELECT identity, transcript, state, created_at, updated_at FROM sessions WHERE identity = $1`

	var sess models.Session
	var transcriptJSON, stateJSON []byte
	err := s.db.QueryRow(query, identity).Scan(
		&sess.Identity, &transcriptJSON, &stateJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore Get: session not found", "identity", identity)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore Get failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to query session for %s: %w", identity, err)
	}

	if err := json.Unmarshal(transcriptJSON, &sess.Messages); err != nil {
		slog.Error("PostgresStore Get transcript unmarshal failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to decode transcript for %s: %w", identity, err)
	}
	if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
		slog.Error("PostgresStore Get state unmarshal failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to decode state for %s: %w", identity, err)
	}
	return &sess, nil
}

// Save stores or replaces the session for its identity.
func (s *PostgresStore) Save(session models.Session) error {
	if session.Identity == "" {
		return models.ErrEmptyIdentity
	}

	transcriptJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	stateJSON, err := json.Marshal(session.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	query := `
		INSERT INTO sessions (identity, transcript, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO UPDATE SET transcript = EXCLUDED.transcript,
			state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, session.Identity, transcriptJSON, stateJSON, session.CreatedAt, now)
	if err != nil {
		slog.Error("PostgresStore Save failed", "error", err, "identity", session.Identity)
		return fmt.Errorf("failed to save session for %s: %w", session.Identity, err)
	}
	slog.Debug("PostgresStore Save succeeded", "identity", session.Identity, "messages", len(session.Messages))
	return nil
}

// Delete removes the session for an identity.
func (s *PostgresStore) Delete(identity string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE identity = $1`, identity)
	if err != nil {
		slog.Error("PostgresStore Delete failed", "error", err, "identity", identity)
		return fmt.Errorf("failed to delete session for %s: %w", identity, err)
	}
	slog.Debug("PostgresStore Delete succeeded", "identity", identity)
	return nil
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres session store")
	return s.db.Close()
}
