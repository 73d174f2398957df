package internal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const storageSchema = `
CREATE TABLE IF NOT EXISTS session_storage (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, key)
)`

// OpenDatabase opens (creating if needed) the SQLite database backing tab-scoped storage
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(storageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_storage table: %w", err)
	}

	return db, nil
}

// QueryScope returns every key-value pair stored under a scope
func QueryScope(db *sql.DB, scope string) ([]KeyValuePair, error) {
	rows, err := db.Query("SELECT key, value FROM session_storage WHERE scope = ? ORDER BY key", scope)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var pairs []KeyValuePair
	for rows.Next() {
		var pair KeyValuePair
		if err := rows.Scan(&pair.Key, &pair.Value); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return pairs, nil
}

// KeyValuePair represents one stored entry
type KeyValuePair struct {
	Key   string
	Value string
}

// StoredEntry is one row of session_storage
type StoredEntry struct {
	Scope     string    `json:"scope"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryEntries returns the rows of every scope, or only of scope when it is not empty
func QueryEntries(db *sql.DB, scope string) ([]StoredEntry, error) {
	query := "SELECT scope, key, value, updated_at FROM session_storage"
	var args []any
	if scope != "" {
		query += " WHERE scope = ?"
		args = append(args, scope)
	}
	query += " ORDER BY scope, key"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []StoredEntry
	for rows.Next() {
		var e StoredEntry
		var updated int64
		if err := rows.Scan(&e.Scope, &e.Key, &e.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.UpdatedAt = time.UnixMilli(updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entries, nil
}

// DeleteScope removes everything stored under scope, like closing a tab
func DeleteScope(db *sql.DB, scope string) (int64, error) {
	res, err := db.Exec("DELETE FROM session_storage WHERE scope = ?", scope)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return res.RowsAffected()
}
