package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated control-plane pool pair in t.TempDir().
// Repository tests that don't care about the read/write split can use the
// write pool for everything.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "quarry.sqlite"), 0)
	if err != nil {
		t.Fatalf("open test control plane: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	if err := RunMigrations(writeDB); err != nil {
		t.Fatalf("migrate test control plane: %v", err)
	}

	return writeDB, readDB
}
