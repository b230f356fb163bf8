// Package database creates the local state storage schema
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the state storage schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
// It is idempotent.
func (tc *TableCreator) CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS wizard_states (storage_key TEXT PRIMARY KEY, session_id TEXT NOT NULL, server_id TEXT, current_step INTEGER NOT NULL DEFAULT 0, status TEXT NOT NULL, payload BLOB NOT NULL, last_activity INTEGER NOT NULL, updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_wizard_states_last_activity ON wizard_states(last_activity)`,
	`CREATE INDEX IF NOT EXISTS idx_wizard_states_session_id ON wizard_states(session_id)`,
}
