package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DB wraps the sql connection pool used by all repositories.
type DB struct {
	*sql.DB
}

// New opens a Postgres connection pool and verifies connectivity.
func New(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// pqUndefinedTable is the Postgres error code for a missing relation.
const pqUndefinedTable = "42P01"

// SchemaMissingError marks an error as the recoverable schema-absence
// condition: the supporting table has not been migrated yet. Callers that
// can degrade (the grounding quota manager) detect it structurally via
// the SchemaMissing method rather than importing this package.
type SchemaMissingError struct {
	Table string
	Err   error
}

func (e *SchemaMissingError) Error() string {
	return fmt.Sprintf("table %s does not exist: %v", e.Table, e.Err)
}

func (e *SchemaMissingError) Unwrap() error { return e.Err }

// SchemaMissing always reports true; it exists so consumers can detect the
// condition through an interface assertion.
func (e *SchemaMissingError) SchemaMissing() bool { return true }

// wrapSchemaMissing converts a pq undefined-table error into a
// SchemaMissingError; other errors pass through unchanged.
func wrapSchemaMissing(err error, table string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUndefinedTable {
		return &SchemaMissingError{Table: table, Err: err}
	}
	return err
}
