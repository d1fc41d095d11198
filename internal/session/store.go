// Package session provides storage backends for WhatsBill conversation sessions.
//
// A session is the per-identity transcript plus wizard state. The store is an
// explicit dependency injected into the orchestrator; backends cover
// in-memory (with TTL eviction), SQLite, and PostgreSQL.
package session

import (
	"strings"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// Store is the session persistence abstraction consumed by the orchestrator.
type Store interface {
	// Get returns the session for an identity, or nil if none exists.
	Get(identity string) (*models.Session, error)

	// Save stores or replaces the session for its identity.
	Save(session models.Session) error

	// Delete removes the session for an identity. Deleting a missing
	// session is not an error.
	Delete(identity string) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for session stores.
type Opts struct {
	DSN string
	TTL time.Duration
}

// Option defines a configuration option for a session store.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL sets the idle time after which in-memory sessions are evicted.
// Zero disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
