package db

import (
	"context"
	"fmt"
)

// SchemaVersion describes the applied migration state
type SchemaVersion struct {
	Version uint `db:"version" json:"version"`
	Dirty   bool `db:"dirty" json:"dirty"`
}

// GetCurrentVersion returns the current migration version
func (db *DB) GetCurrentVersion(ctx context.Context) (*SchemaVersion, error) {
	var v SchemaVersion
	query := `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`

	if err := db.GetContext(ctx, &v, query); err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	return &v, nil
}
