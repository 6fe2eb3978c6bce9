package store

import (
	"database/sql"
	"os"
	"testing"
)

// OpenTemp opens a throwaway database backed by a temp file and registers
// cleanup with t. It is meant for tests in the packages that own tables.
func OpenTemp(t testing.TB) *sql.DB {
	t.Helper()
	f, err := os.CreateTemp("", "taskmanager-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	db, err := Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
