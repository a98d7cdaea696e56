package database

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database in a per-test temporary directory.
func NewTestDB(tb testing.TB) *DB {
	tb.Helper()
	db, err := NewDB(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}
