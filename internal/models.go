package internal

import (
	"strings"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one turn of the chronological transcript
type ConversationMessage struct {
	Role      string           `json:"role" yaml:"role"`
	Content   string           `json:"content" yaml:"content"`
	Timestamp string           `json:"timestamp" yaml:"timestamp"` // RFC3339
	Metadata  *MessageMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MessageMetadata carries what the server attached to an assistant turn
type MessageMetadata struct {
	Sources                []Reference    `json:"sources,omitempty" yaml:"sources,omitempty"`
	SearchResultsCount     int            `json:"search_results_count,omitempty" yaml:"search_results_count,omitempty"`
	FiltersApplied         map[string]any `json:"filters_applied,omitempty" yaml:"filters_applied,omitempty"`
	PurchaseAssistance     map[string]any `json:"purchase_assistance,omitempty" yaml:"purchase_assistance,omitempty"`
	IsPurchaseQuery        bool           `json:"is_purchase_query,omitempty" yaml:"is_purchase_query,omitempty"`
	GraphRAGEnhanced       bool           `json:"graphrag_enhanced,omitempty" yaml:"graphrag_enhanced,omitempty"`
	CombinedRelevanceScore float64        `json:"combined_relevance_score,omitempty" yaml:"combined_relevance_score,omitempty"`
}

// Reference is the canonical source link shape used everywhere past the API boundary
type Reference struct {
	ID      int    `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Domain  string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Coordinates is an optional location attached to a chat request
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Query            string       `json:"query"`
	SessionID        string       `json:"session_id,omitempty"`
	Location         *Coordinates `json:"-"`
	ContentType      string       `json:"content_type,omitempty"`
	Brand            string       `json:"brand,omitempty"`
	Keywords         []string     `json:"keywords,omitempty"`
	TopSearchResults int          `json:"top_search_results,omitempty"`
}

// Validate checks caller input before anything goes on the wire
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if r.Location != nil {
		if r.Location.Lat < -90 || r.Location.Lat > 90 {
			return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
		}
		if r.Location.Lon < -180 || r.Location.Lon > 180 {
			return &ValidationError{Field: "lon", Reason: "must be between -180 and 180"}
		}
	}
	if r.TopSearchResults != 0 && (r.TopSearchResults < 1 || r.TopSearchResults > 20) {
		return &ValidationError{Field: "top_search_results", Reason: "must be between 1 and 20"}
	}
	return nil
}

// ChatResponse is the normalized result of POST /chat
type ChatResponse struct {
	Answer                 string
	Sources                []Reference
	SessionID              string
	Query                  string
	SearchResultsCount     int
	FiltersApplied         map[string]any
	PurchaseAssistance     map[string]any
	IsPurchaseQuery        bool
	GraphRAGEnhanced       bool
	CombinedRelevanceScore float64
}

// Metadata builds the metadata attached to the assistant turn for this response
func (r *ChatResponse) Metadata() *MessageMetadata {
	return &MessageMetadata{
		Sources:                r.Sources,
		SearchResultsCount:     r.SearchResultsCount,
		FiltersApplied:         r.FiltersApplied,
		PurchaseAssistance:     r.PurchaseAssistance,
		IsPurchaseQuery:        r.IsPurchaseQuery,
		GraphRAGEnhanced:       r.GraphRAGEnhanced,
		CombinedRelevanceScore: r.CombinedRelevanceScore,
	}
}

// NewMessage creates a message stamped with the given time
func NewMessage(role, content string, at time.Time, metadata *MessageMetadata) ConversationMessage {
	return ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: formatTimestamp(at),
		Metadata:  metadata,
	}
}

// GetTimestamp returns the parsed message time, or the zero time if unparseable
func (m ConversationMessage) GetTimestamp() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatTimestamp formats a time to ISO8601
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
