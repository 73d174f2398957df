package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chat-session/testutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func TestClient_CreateSession(t *testing.T) {
	var gotMetadata map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body struct {
			Metadata map[string]any `json:"metadata"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotMetadata = body.Metadata
		_, _ = w.Write([]byte(`{"session_id":"abc","message":"Session created successfully"}`))
	})

	id, err := client.CreateSession(context.Background(), map[string]any{"source": "cli"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "cli", gotMetadata["source"])
}

func TestClient_CreateSession_MissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	_, err := client.CreateSession(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "create_session", apiErr.Op)
}

func TestClient_GetHistory(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{"default", 0, "20"},
		{"explicit", 5, "5"},
		{"clamped high", 500, "100"},
		{"clamped low", -3, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/session/abc/history", r.URL.Path)
				assert.Equal(t, tt.wantLimit, r.URL.Query().Get("limit"))
				_, _ = w.Write([]byte(`{"session_id":"abc","total_messages":2,"messages":[
					{"role":"user","content":"hi","timestamp":"2024-01-01T12:00:00.123456"},
					{"role":"assistant","content":"hello","timestamp":"2024-01-01T12:00:01",
					 "metadata":{"sources":[{"page_title":"Doc","url":"https://x.com/doc"}],"search_results_count":1}}
				]}`))
			})

			messages, err := client.GetHistory(context.Background(), "abc", tt.limit)
			require.NoError(t, err)
			require.Len(t, messages, 2)
			assert.Equal(t, RoleUser, messages[0].Role)
			assert.Equal(t, "2024-01-01T12:00:00Z", messages[0].Timestamp)
			assert.Equal(t, RoleAssistant, messages[1].Role)
			require.NotNil(t, messages[1].Metadata)
			require.Len(t, messages[1].Metadata.Sources, 1)
			assert.Equal(t, "Doc", messages[1].Metadata.Sources[0].Title)
			assert.Equal(t, 1, messages[1].Metadata.SearchResultsCount)
		})
	}
}

func TestClient_GetHistory_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
	})

	_, err := client.GetHistory(context.Background(), "gone", 0)
	require.Error(t, err)
	assert.True(t, IsSessionNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Session not found")
}

func TestClient_DeleteSession(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/session/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"session_id":"abc","message":"Session deleted successfully"}`))
	})

	require.NoError(t, client.DeleteSession(context.Background(), "abc"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Chat(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(testutil.ChatResponseFixture))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		Query:            "chocolate",
		SessionID:        "abc",
		Location:         &Coordinates{Lat: 43.65, Lon: -79.38},
		ContentType:      "recipe",
		TopSearchResults: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "chocolate", body["query"])
	assert.Equal(t, "abc", body["session_id"])
	assert.InDelta(t, 43.65, body["lat"], 1e-9)
	assert.InDelta(t, -79.38, body["lon"], 1e-9)
	assert.Equal(t, "recipe", body["content_type"])
	assert.NotContains(t, body, "brand")

	assert.Equal(t, "server-session", resp.SessionID)
	assert.True(t, resp.GraphRAGEnhanced)
	assert.InDelta(t, 0.82, resp.CombinedRelevanceScore, 1e-9)
	assert.Equal(t, "recipe", resp.FiltersApplied["content_type"])

	// the two chocolate sources differ only by scheme, www and trailing slash
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, 1, resp.Sources[0].ID)
	assert.Equal(t, "Chocolate Recipes", resp.Sources[0].Title)
	assert.Equal(t, 2, resp.Sources[1].ID)
	assert.Equal(t, "https://example.com/vanilla", resp.Sources[1].URL)
}

func TestClient_Chat_OmitsLocationWhenAbsent(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"answer":"ok","sources":[],"session_id":"s"}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{Query: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, body, "lat")
	assert.NotContains(t, body, "lon")
	assert.NotContains(t, body, "session_id")
}

func TestClient_Errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.Chat(context.Background(), ChatRequest{Query: "hi", SessionID: "abc"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.False(t, IsSessionNotFound(err))
	})

	t.Run("malformed payload", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})
		_, err := client.Chat(context.Background(), ChatRequest{Query: "hi"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := NewClient(srv.URL, time.Second)

		_, err := client.CreateSession(context.Background(), nil)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, "create_session", netErr.Op)
	})

	t.Run("404 without session is an api error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		_, err := client.Chat(context.Background(), ChatRequest{Query: "hi"})
		require.Error(t, err)
		assert.False(t, IsSessionNotFound(err))
	})
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"Chat API","version":"1.0.0"}`))
	})

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}

func TestClient_SendBeacon(t *testing.T) {
	deleted := make(chan string, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		deleted <- r.URL.Path
	})

	assert.False(t, client.SendBeacon(""))
	assert.True(t, client.SendBeacon("abc"))
	client.Close(time.Second)

	select {
	case path := <-deleted:
		assert.Equal(t, "/session/abc", path)
	default:
		t.Fatal("beacon did not reach the server before Close returned")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"abc"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateSession(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
