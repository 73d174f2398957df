package internal

import "time"

// Session identifies one server-side conversation
type Session struct {
	ID        string         `json:"id" yaml:"id"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SessionState is the identity state of a SessionManager
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// Snapshot is what subscribers of a SessionManager observe after each change
type Snapshot struct {
	State     SessionState
	SessionID string
	History   []ConversationMessage
}

// Transcript is an archived conversation
type Transcript struct {
	Session  Session               `json:"session" yaml:"session"`
	Messages []ConversationMessage `json:"messages" yaml:"messages"`
	SavedAt  time.Time             `json:"saved_at" yaml:"saved_at"`
}
