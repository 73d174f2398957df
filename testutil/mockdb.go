package testutil

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const storageTableSQL = `
CREATE TABLE IF NOT EXISTS session_storage (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, key)
)`

// CreateInMemoryDB creates an in-memory SQLite database with the session_storage table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// every pooled connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storageTableSQL); err != nil {
		db.Close()
		t.Fatalf("Failed to create session_storage table: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// InsertEntry inserts one scoped key-value pair
func InsertEntry(t *testing.T, db *sql.DB, scope, key, value string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO session_storage (scope, key, value, updated_at) VALUES (?, ?, ?, ?)",
		scope, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		t.Fatalf("Failed to insert %s/%s: %v", scope, key, err)
	}
}
