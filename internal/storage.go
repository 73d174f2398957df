package internal

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// Keys used in tab-scoped storage
const (
	SessionIDKey  = "chat_session_id"
	ReloadFlagKey = "chat_page_loaded"
)

// KeyValueStore is volatile, tab-scoped storage: entries are visible only to the
// scope (tab) that wrote them.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is a KeyValueStore that lives as long as the process
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the value for key and whether it was present
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Set stores value under key
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Storage is a KeyValueStore persisted in SQLite, partitioned by scope
type Storage struct {
	db    *sql.DB
	path  string
	scope string
}

// NewStorage creates a Storage bound to one scope of an open database
func NewStorage(db *sql.DB, path, scope string) *Storage {
	return &Storage{db: db, path: path, scope: scope}
}

// OpenStorage opens the database at path and binds it to scope
func OpenStorage(path, scope string) (*Storage, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}
	return NewStorage(db, path, scope), nil
}

// Scope returns the scope this storage reads and writes
func (s *Storage) Scope() string {
	return s.scope
}

// Get returns the value for key and whether it was present
func (s *Storage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM session_storage WHERE scope = ? AND key = ?", s.scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Path: s.path, Op: "get", Err: err}
	}
	return value, true, nil
}

// Set stores value under key
func (s *Storage) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO session_storage (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return &StorageError{Path: s.path, Op: "set", Err: err}
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *Storage) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM session_storage WHERE scope = ? AND key = ?", s.scope, key); err != nil {
		return &StorageError{Path: s.path, Op: "delete", Err: err}
	}
	return nil
}

// Entries lists everything stored in this scope
func (s *Storage) Entries() ([]KeyValuePair, error) {
	pairs, err := QueryScope(s.db, s.scope)
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "get", Err: err}
	}
	return pairs, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}
