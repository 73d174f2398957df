package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultAPITimeout bounds every request made by the Client
	DefaultAPITimeout = 30 * time.Second

	// DefaultHistoryLimit is used when the caller passes a limit of zero
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	// beaconTimeout bounds a fire-and-forget session delete
	beaconTimeout = 2 * time.Second

	errorBodyLimit = 512
)

// ChatAPI is the request-response capability a SessionManager consumes
type ChatAPI interface {
	CreateSession(ctx context.Context, metadata map[string]any) (string, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Beaconer delivers a session delete without blocking the caller. SendBeacon
// reports whether the delivery was queued.
type Beaconer interface {
	SendBeacon(sessionID string) bool
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the chat backend over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	normalizer *Normalizer
	dedup      *Deduplicator
	beacons    sync.WaitGroup
}

// NewClient creates a Client for baseURL. A zero timeout uses DefaultAPITimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		normalizer: NewNormalizer(),
		dedup:      NewDeduplicator(),
	}
}

// BaseURL returns the API root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

type createSessionBody struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

type sessionBody struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

type historyBody struct {
	SessionID     string           `json:"session_id"`
	Messages      []map[string]any `json:"messages"`
	TotalMessages int              `json:"total_messages"`
}

type chatBody struct {
	Query            string   `json:"query"`
	SessionID        string   `json:"session_id,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	ContentType      string   `json:"content_type,omitempty"`
	Brand            string   `json:"brand,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	TopSearchResults int      `json:"top_search_results,omitempty"`
}

type chatResponseBody struct {
	Answer                 string           `json:"answer"`
	Sources                []map[string]any `json:"sources"`
	SessionID              string           `json:"session_id"`
	Query                  string           `json:"query"`
	SearchResultsCount     int              `json:"search_results_count"`
	FiltersApplied         map[string]any   `json:"filters_applied"`
	PurchaseAssistance     map[string]any   `json:"purchase_assistance"`
	IsPurchaseQuery        bool             `json:"is_purchase_query"`
	GraphRAGEnhanced       bool             `json:"graphrag_enhanced"`
	CombinedRelevanceScore float64          `json:"combined_relevance_score"`
}

// CreateSession calls POST /session and returns the new session id
func (c *Client) CreateSession(ctx context.Context, metadata map[string]any) (string, error) {
	var out sessionBody
	if err := c.do(ctx, "create_session", http.MethodPost, "/session", "", createSessionBody{Metadata: metadata}, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", &APIError{Op: "create_session", StatusCode: http.StatusOK, Err: fmt.Errorf("response carried no session_id")}
	}
	LogDebug("Created session %s", out.SessionID)
	return out.SessionID, nil
}

// GetHistory calls GET /session/{id}/history. The limit is clamped to 1..100;
// zero means DefaultHistoryLimit.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	limit = max(1, min(limit, MaxHistoryLimit))

	var out historyBody
	path := "/session/" + url.PathEscape(sessionID) + "/history?limit=" + fmt.Sprint(limit)
	if err := c.do(ctx, "history", http.MethodGet, path, sessionID, nil, &out); err != nil {
		return nil, err
	}

	messages := make([]ConversationMessage, 0, len(out.Messages))
	for _, raw := range out.Messages {
		messages = append(messages, c.normalizeMessage(raw))
	}
	return messages, nil
}

// DeleteSession calls DELETE /session/{id}
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "delete_session", http.MethodDelete, "/session/"+url.PathEscape(sessionID), sessionID, nil, nil)
}

// Chat calls POST /chat. Sources are normalized and deduplicated before they are returned.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := chatBody{
		Query:            req.Query,
		SessionID:        req.SessionID,
		ContentType:      req.ContentType,
		Brand:            req.Brand,
		Keywords:         req.Keywords,
		TopSearchResults: req.TopSearchResults,
	}
	if req.Location != nil {
		body.Lat = &req.Location.Lat
		body.Lon = &req.Location.Lon
	}

	var out chatResponseBody
	if err := c.do(ctx, "chat", http.MethodPost, "/chat", req.SessionID, body, &out); err != nil {
		return nil, err
	}

	return &ChatResponse{
		Answer:                 out.Answer,
		Sources:                c.dedup.Deduplicate(c.normalizer.NormalizeReferences(out.Sources)),
		SessionID:              out.SessionID,
		Query:                  out.Query,
		SearchResultsCount:     out.SearchResultsCount,
		FiltersApplied:         out.FiltersApplied,
		PurchaseAssistance:     out.PurchaseAssistance,
		IsPurchaseQuery:        out.IsPurchaseQuery,
		GraphRAGEnhanced:       out.GraphRAGEnhanced,
		CombinedRelevanceScore: out.CombinedRelevanceScore,
	}, nil
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendBeacon deletes the session in the background, detached from any caller context
func (c *Client) SendBeacon(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	c.beacons.Add(1)
	go func() {
		defer c.beacons.Done()
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		if err := c.DeleteSession(ctx, sessionID); err != nil {
			LogWarn("Beacon delete of session %s failed: %v", sessionID, err)
		}
	}()
	return true
}

// Close waits for queued beacons to finish, up to timeout
func (c *Client) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.beacons.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		LogWarn("Gave up waiting for pending session deletes after %s", timeout)
	}
}

func (c *Client) normalizeMessage(raw map[string]any) ConversationMessage {
	role, _ := raw["role"].(string)
	content, _ := raw["content"].(string)
	msg := ConversationMessage{
		Role:      c.normalizer.NormalizeRole(role),
		Content:   content,
		Timestamp: c.normalizer.NormalizeTimestamp(raw["timestamp"]),
	}
	if md, ok := raw["metadata"].(map[string]any); ok && len(md) > 0 {
		msg.Metadata = c.normalizeMetadata(md)
	}
	return msg
}

func (c *Client) normalizeMetadata(md map[string]any) *MessageMetadata {
	out := &MessageMetadata{}
	if rawSources, ok := md["sources"].([]any); ok {
		sources := make([]map[string]any, 0, len(rawSources))
		for _, s := range rawSources {
			if m, ok := s.(map[string]any); ok {
				sources = append(sources, m)
			}
		}
		out.Sources = c.normalizer.NormalizeReferences(sources)
	}
	if v, ok := md["search_results_count"]; ok {
		out.SearchResultsCount = toInt(v)
	}
	out.FiltersApplied, _ = md["filters_applied"].(map[string]any)
	out.PurchaseAssistance, _ = md["purchase_assistance"].(map[string]any)
	out.IsPurchaseQuery, _ = md["is_purchase_query"].(bool)
	out.GraphRAGEnhanced, _ = md["graphrag_enhanced"].(bool)
	out.CombinedRelevanceScore, _ = md["combined_relevance_score"].(float64)
	return out
}

// do performs one JSON round trip. A 404 on a request naming a session is
// reported as SessionNotFoundError.
func (c *Client) do(ctx context.Context, op, method, path, sessionID string, in, out any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode == http.StatusNotFound && sessionID != "" {
			return &SessionNotFoundError{SessionID: sessionID, Err: apiErr}
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
