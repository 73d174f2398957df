package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/iksnae/chat-session/internal"
)

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name       string
		transcript *internal.Transcript
		wantCount  int
	}{
		{
			name:       "basic transcript",
			transcript: internal.CreateTestTranscript("test1"),
			wantCount:  4,
		},
		{
			name: "empty transcript",
			transcript: &internal.Transcript{
				Session:  internal.Session{ID: "test2"},
				Messages: []internal.ConversationMessage{},
			},
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONExporter{}

			if err := exporter.Export(tt.transcript, &buf); err != nil {
				t.Fatalf("JSONExporter.Export() error = %v", err)
			}

			var decoded internal.Transcript
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("Output is not valid JSON: %v\n%s", err, buf.String())
			}
			if decoded.Session.ID != tt.transcript.Session.ID {
				t.Errorf("Session.ID = %q, want %q", decoded.Session.ID, tt.transcript.Session.ID)
			}
			if len(decoded.Messages) != tt.wantCount {
				t.Errorf("len(Messages) = %d, want %d", len(decoded.Messages), tt.wantCount)
			}
		})
	}
}

func TestJSONExporter_KeepsSources(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(internal.CreateTestTranscript("s"), &buf); err != nil {
		t.Fatal(err)
	}

	var decoded internal.Transcript
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}

	md := decoded.Messages[1].Metadata
	if md == nil || len(md.Sources) != 1 {
		t.Fatalf("assistant metadata lost: %+v", md)
	}
	if md.Sources[0].URL != "https://example.com/1" {
		t.Errorf("Sources[0].URL = %q", md.Sources[0].URL)
	}
	if !decoded.SavedAt.Equal(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("SavedAt = %v", decoded.SavedAt)
	}
}

func TestJSONExporter_Extension(t *testing.T) {
	exporter := &JSONExporter{}
	if got := exporter.Extension(); got != "json" {
		t.Errorf("JSONExporter.Extension() = %v, want json", got)
	}
}
