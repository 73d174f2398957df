package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chat-session/internal"
)

func TestHistoryCommand_FromServer(t *testing.T) {
	backend := newFakeBackend(t)
	newTestEnv(t, backend.URL, "")
	backend.seed("sess-9", 3)

	out, _, err := runCommand(t, "", "history", "sess-9", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Session sess-9")
	assert.Contains(t, out, "Messages: 3")
	assert.Contains(t, out, "[1/3]")
	assert.Contains(t, out, "[2/3]")
	assert.NotContains(t, out, "[3/3]")
	assert.Contains(t, out, "... (1 more message(s))")
}

func TestHistoryCommand_StoredSession(t *testing.T) {
	backend := newFakeBackend(t)
	newTestEnv(t, backend.URL, "")

	_, _, err := runCommand(t, "", "ask", "--raw", "--scope", "tab-1", "hello")
	require.NoError(t, err)

	out, _, err := runCommand(t, "", "history", "--scope", "tab-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session sess-1")
	assert.Contains(t, out, "Echo: hello")
}

func TestHistoryCommand_Since(t *testing.T) {
	backend := newFakeBackend(t)
	newTestEnv(t, backend.URL, "")
	backend.seed("sess-9", 4)

	out, _, err := runCommand(t, "", "history", "sess-9", "--since", "2024-01-01T12:02:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "message 3")
	assert.NotContains(t, out, "message 2")
}

func TestHistoryCommand_Cached(t *testing.T) {
	backend := newFakeBackend(t)
	env := newTestEnv(t, backend.URL, "")
	require.NoError(t, internal.NewTranscriptCache(env.cacheDir).SaveTranscript(internal.CreateTestTranscript("archived-1")))

	out, _, err := runCommand(t, "", "history", "--cached", "archived-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session archived-1")
	assert.Contains(t, out, "Archived:")
	assert.Contains(t, out, "[4/4]")
}

func TestHistoryCommand_Errors(t *testing.T) {
	backend := newFakeBackend(t)
	newTestEnv(t, backend.URL, "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unknown session",
			args:    []string{"history", "missing"},
			wantErr: "session not found: missing",
		},
		{
			name:    "nothing stored in scope",
			args:    []string{"history", "--scope", "empty-tab"},
			wantErr: "no session stored in scope",
		},
		{
			name:    "cached without id",
			args:    []string{"history", "--cached"},
			wantErr: "--cached needs a session id",
		},
		{
			name:    "cached unknown id",
			args:    []string{"history", "--cached", "nope"},
			wantErr: "transcript not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHistoryCommand_InvalidSince(t *testing.T) {
	backend := newFakeBackend(t)
	newTestEnv(t, backend.URL, "")
	backend.seed("sess-9", 1)

	_, _, err := runCommand(t, "", "history", "sess-9", "--since", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected RFC3339")
}

func TestFilterSince(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	messages := []internal.ConversationMessage{
		internal.NewMessage(internal.RoleUser, "old", base, nil),
		internal.NewMessage(internal.RoleAssistant, "edge", base.Add(time.Minute), nil),
		internal.NewMessage(internal.RoleUser, "new", base.Add(2*time.Minute), nil),
		{Role: internal.RoleAssistant, Content: "undated"},
	}

	got := filterSince(messages, base.Add(time.Minute))

	require.Len(t, got, 2)
	assert.Equal(t, "edge", got[0].Content)
	assert.Equal(t, "new", got[1].Content)
}
