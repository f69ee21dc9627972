package testutil

import (
	"testing"

	"twin/internal/db"
)

// SetupTestDB creates a migrated in-memory journal database
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(db.MemoryConfig())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to migrate database: %v", err)
	}

	var count int
	err = database.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('operations', 'operation_steps')")
	if err != nil {
		t.Fatalf("Failed to verify tables: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 tables, got %d", count)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}
