package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chat-session/testutil"
)

func testConfig(t *testing.T, apiURL string) *Config {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	cfg := DefaultConfig()
	cfg.API.BaseURL = apiURL
	cfg.Storage.Path = filepath.Join(dir, "state", "storage.db")
	cfg.Cache.Dir = filepath.Join(dir, "transcripts")
	return cfg
}

func TestNewApp_FreshScope(t *testing.T) {
	cfg := testConfig(t, "http://localhost:1")

	first, err := NewApp(cfg)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewApp(cfg)
	require.NoError(t, err)
	defer second.Close()

	assert.NotEmpty(t, first.Scope)
	assert.NotEqual(t, first.Scope, second.Scope, "each process gets its own tab")
}

func TestNewApp_NamedScope(t *testing.T) {
	cfg := testConfig(t, "http://localhost:1")
	cfg.Storage.Scope = "tab-1"

	app, err := NewApp(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "tab-1", app.Scope)
	assert.Equal(t, "tab-1", app.Storage.Scope())
}

func TestApp_ArchiveAndClose(t *testing.T) {
	deleted := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			_, _ = w.Write([]byte(`{"session_id":"abc"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/chat":
			_, _ = w.Write([]byte(testutil.ChatResponseFixture))
		case r.Method == http.MethodDelete:
			deleted <- r.URL.Path
		}
	}))
	defer srv.Close()

	app, err := NewApp(testConfig(t, srv.URL))
	require.NoError(t, err)

	require.NoError(t, app.Archive(), "archiving with no conversation is a no-op")

	_, err = app.Sessions.SendMessage(context.Background(), ChatRequest{Query: "chocolate"})
	require.NoError(t, err)
	assert.Equal(t, "server-session", app.Sessions.SessionID())

	require.NoError(t, app.Archive())
	entries, err := app.Cache.ListTranscripts()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "server-session", entries[0].SessionID)

	app.Sessions.CleanupOnUnload()
	require.NoError(t, app.Close())
	assert.Equal(t, "/session/server-session", <-deleted)
}
