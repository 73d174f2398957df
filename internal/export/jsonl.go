package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/chat-session/internal"
)

// JSONLExporter exports transcripts in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	SessionID string               `json:"session_id"`
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	Timestamp string               `json:"timestamp,omitempty"`
	Sources   []internal.Reference `json:"sources,omitempty"`
}

// Export writes one JSON object per message
func (e *JSONLExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range transcript.Messages {
		line := jsonlLine{
			SessionID: transcript.Session.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if msg.Metadata != nil {
			line.Sources = msg.Metadata.Sources
		}

		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
