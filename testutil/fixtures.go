package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateSQLiteFixture creates a file-backed storage database with one scope holding a
// session id and a page-load flag.
func CreateSQLiteFixture(t *testing.T, dbPath, scope, sessionID string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(storageTableSQL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	InsertEntry(t, db, scope, "chat_session_id", sessionID)
	InsertEntry(t, db, scope, "chat_page_loaded", "true")
}

// ChatResponseFixture is a POST /chat body in the backend's wire shape
const ChatResponseFixture = `{
  "answer": "# Chocolate Recipes\n1. **Melt** the chocolate\n- use a double boiler\n2. Fold in cream",
  "sources": [
    {"id": 1, "title": "Chocolate Recipes", "section": "Desserts", "url": "http://example.com/choc"},
    {"id": 2, "page_title": "Chocolate Recipes", "section_title": "Desserts", "url": "https://www.example.com/choc/"},
    {"id": 3, "title": "Vanilla Cake", "link": "https://example.com/vanilla"}
  ],
  "search_results_count": 3,
  "query": "chocolate",
  "session_id": "server-session",
  "filters_applied": {"content_type": "recipe", "brand": null, "keywords": null},
  "graphrag_enhanced": true,
  "combined_relevance_score": 0.82
}`
