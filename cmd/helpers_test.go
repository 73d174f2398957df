package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/iksnae/chat-session/internal"
)

// resetFlags puts every flag of c and its subcommands back to its default.
// rootCmd is shared by all tests and cobra keeps parsed values between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCommand executes rootCmd with args and stdin and returns what it printed
func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// testEnv isolates a test from the real home directory and points the
// configuration at the given backend
type testEnv struct {
	home     string
	store    string
	cacheDir string
}

func newTestEnv(t *testing.T, apiURL, wsURL string) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	env := &testEnv{
		home:     home,
		store:    filepath.Join(home, "store.db"),
		cacheDir: filepath.Join(home, ".chat-session", "transcripts"),
	}
	t.Setenv(internal.EnvAPIURL, apiURL)
	t.Setenv(internal.EnvWSURL, wsURL)
	t.Setenv(internal.EnvStore, env.store)
	t.Setenv(internal.EnvScope, "")
	return env
}

// writeConfig writes a config file into the test home and returns its path
func (e *testEnv) writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(e.home, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// fakeBackend is an in-memory stand-in for the chat API
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	next     int
	sessions map[string][]map[string]any
	created  []string
	deleted  []string
	queries  []string
	status   string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		sessions: make(map[string][]map[string]any),
		status:   "healthy",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.status
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "service": "chat", "version": "1.0.0"})
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		id := b.newSession()
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "message": "Session created successfully"})
	})
	mux.HandleFunc("GET /session/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		messages, ok := b.sessions[id]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": messages, "total_messages": len(messages)})
	})
	mux.HandleFunc("DELETE /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.sessions[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		delete(b.sessions, id)
		b.deleted = append(b.deleted, id)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Session deleted successfully"})
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string `json:"query"`
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.sessions[req.SessionID]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		answer := "Echo: " + req.Query
		now := time.Now().UTC().Format(time.RFC3339)
		b.queries = append(b.queries, req.Query)
		b.sessions[req.SessionID] = append(b.sessions[req.SessionID],
			map[string]any{"role": "user", "content": req.Query, "timestamp": now},
			map[string]any{"role": "assistant", "content": answer, "timestamp": now},
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"answer": answer,
			"sources": []map[string]any{
				{"id": 1, "title": "Chocolate Recipes", "url": "https://example.com/choc"},
				{"id": 2, "title": "Chocolate Recipes", "url": "https://www.example.com/choc/"},
			},
			"session_id":           req.SessionID,
			"query":                req.Query,
			"search_results_count": 2,
		})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) newSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := fmt.Sprintf("sess-%d", b.next)
	b.sessions[id] = []map[string]any{}
	b.created = append(b.created, id)
	return id
}

// seed adds a session with n alternating turns
func (b *fakeBackend) seed(id string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	messages := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages = append(messages, map[string]any{
			"role":      role,
			"content":   fmt.Sprintf("message %d", i+1),
			"timestamp": base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}
	b.sessions[id] = messages
}

func (b *fakeBackend) setStatus(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

func (b *fakeBackend) snapshot() (created, deleted, queries []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...), append([]string(nil), b.deleted...), append([]string(nil), b.queries...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newFakeSocket serves the realtime feed: a system frame on connect, pong for
// ping and an echoed chat_response for every chat frame. Paths are recorded.
func newFakeSocket(t *testing.T) (string, <-chan string) {
	t.Helper()
	paths := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		select {
		case paths <- r.URL.Path:
		default:
		}

		_ = conn.WriteJSON(map[string]any{"type": "system", "message": "Connected to chat server", "connection_id": "conn-1"})
		for {
			var frame struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			switch frame.Type {
			case "ping":
				_ = conn.WriteJSON(map[string]any{"type": "pong", "timestamp": 1700000000.0})
			case "chat":
				_ = conn.WriteJSON(map[string]any{"type": "typing", "is_typing": true, "sender": "assistant"})
				_ = conn.WriteJSON(map[string]any{
					"type":       "chat_response",
					"message":    "Live: " + frame.Message,
					"references": []map[string]any{{"title": "Live Source", "url": "https://example.com/live"}},
					"sender":     "assistant",
					"timestamp":  1700000000.0,
				})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", paths
}
