// Package session provides storage backends for WhatsBill conversation sessions.
//
// This file implements the SQLite-backed session store.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite session store with the given DSN.
// The DSN is a file path; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite session store ready", "path", cfg.DSN)

	return &SQLiteStore{db: db}, nil
}

// Get returns the session for an identity, or nil if none exists.
func (s *SQLiteStore) Get(identity string) (*models.Session, error) {
	query := `SELECT identity, transcript, state, created_at, updated_at FROM sessions WHERE identity = ?`

	var sess models.Session
	var transcriptJSON, stateJSON string
	err := s.db.QueryRow(query, identity).Scan(
		&sess.Identity, &transcriptJSON, &stateJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore Get: session not found", "identity", identity)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore Get failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to query session for %s: %w", identity, err)
	}

	if err := json.Unmarshal([]byte(transcriptJSON), &sess.Messages); err != nil {
		slog.Error("SQLiteStore Get transcript unmarshal failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to decode transcript for %s: %w", identity, err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		slog.Error("SQLiteStore Get state unmarshal failed", "error", err, "identity", identity)
		return nil, fmt.Errorf("failed to decode state for %s: %w", identity, err)
	}
	return &sess, nil
}

// Save stores or replaces the session for its identity.
func (s *SQLiteStore) Save(session models.Session) error {
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
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET transcript = excluded.transcript,
			state = excluded.state, updated_at = excluded.updated_at`
	_, err = s.db.Exec(query, session.Identity, string(transcriptJSON), string(stateJSON), session.CreatedAt, now)
	if err != nil {
		slog.Error("SQLiteStore Save failed", "error", err, "identity", session.Identity)
		return fmt.Errorf("failed to save session for %s: %w", session.Identity, err)
	}
	slog.Debug("SQLiteStore Save succeeded", "identity", session.Identity, "messages", len(session.Messages))
	return nil
}

// Delete removes the session for an identity.
func (s *SQLiteStore) Delete(identity string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE identity = ?`, identity)
	if err != nil {
		slog.Error("SQLiteStore Delete failed", "error", err, "identity", identity)
		return fmt.Errorf("failed to delete session for %s: %w", identity, err)
	}
	slog.Debug("SQLiteStore Delete succeeded", "identity", identity)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite session store")
	return s.db.Close()
}
