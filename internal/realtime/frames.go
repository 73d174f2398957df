package realtime

import "encoding/json"

// Frame types sent by the client
const (
	TypeChat   = "chat"
	TypePing   = "ping"
	TypeTyping = "typing"
)

// Frame types sent by the server (typing is used in both directions)
const (
	TypeChatResponse = "chat_response"
	TypeError        = "error"
	TypeSystem       = "system"
	TypePong         = "pong"
)

// Frame is one inbound JSON frame; Raw holds the complete object
type Frame struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the frame into one of the payload types
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.Raw, v)
}

type outboundFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	IsTyping *bool  `json:"is_typing,omitempty"`
}

// ChatResponsePayload is a chat_response frame
type ChatResponsePayload struct {
	Message        string           `json:"message"`
	References     []map[string]any `json:"references"`
	Sender         string           `json:"sender"`
	Timestamp      float64          `json:"timestamp"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// TypingPayload is a typing frame
type TypingPayload struct {
	IsTyping     bool   `json:"is_typing"`
	Sender       string `json:"sender"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// SystemPayload is a system frame
type SystemPayload struct {
	Message        string `json:"message"`
	ConnectionID   string `json:"connection_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ErrorPayload is an error frame
type ErrorPayload struct {
	Message string `json:"message"`
}

// PongPayload is a pong frame
type PongPayload struct {
	Timestamp      float64 `json:"timestamp"`
	ConversationID string  `json:"conversation_id,omitempty"`
}
