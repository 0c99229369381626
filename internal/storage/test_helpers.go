package storage

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a migrated database in a temporary file and closes it when
// the test ends. Exported for the tests of packages built on storage.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	config := DefaultConfig(dbPath)
	config.AutoMigrate = true

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
