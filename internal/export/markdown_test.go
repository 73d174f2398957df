package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/chat-session/internal"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name       string
		transcript *internal.Transcript
		want       []string
		notWant    []string
	}{
		{
			name:       "basic transcript",
			transcript: internal.CreateTestTranscript("test1"),
			want: []string{
				"# Conversation test1",
				"**Started:** 2024-01-01T12:00:00Z",
				"**Saved:** 2024-01-01T13:00:00Z",
				"**Messages:** 4",
				"### You (2024-01-01T12:00:00Z)",
				"Question 1",
				"### Assistant (2024-01-01T12:01:00Z)",
				"**Answer 1**",
				"**Sources:**",
				"1. [Source 1](https://example.com/1)",
			},
		},
		{
			name: "user emphasis escaped",
			transcript: &internal.Transcript{
				Session: internal.Session{ID: "test2"},
				Messages: []internal.ConversationMessage{
					internal.NewMessage(internal.RoleUser, "is **this** bold?", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), nil),
				},
			},
			want:    []string{"is \\*\\*this\\*\\* bold?", "### You (2023-01-01T00:00:00Z)"},
			notWant: []string{"**Started:**", "**Saved:**"},
		},
		{
			name: "source with section and no url",
			transcript: &internal.Transcript{
				Session: internal.Session{ID: "test3"},
				Messages: []internal.ConversationMessage{{
					Role:     internal.RoleAssistant,
					Content:  "answer",
					Metadata: &internal.MessageMetadata{Sources: []internal.Reference{{ID: 1, Title: "Guide", Section: "Intro"}}},
				}},
			},
			want: []string{"### Assistant\n", "1. Guide › Intro"},
		},
		{
			name:       "empty transcript",
			transcript: &internal.Transcript{Session: internal.Session{ID: "test5"}},
			want: []string{
				"# Conversation test5",
				"**Messages:** 0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &MarkdownExporter{}

			if err := exporter.Export(tt.transcript, &buf); err != nil {
				t.Fatalf("MarkdownExporter.Export() error = %v", err)
			}

			output := buf.String()
			for _, wantStr := range tt.want {
				if !strings.Contains(output, wantStr) {
					t.Errorf("Output should contain %q, got:\n%s", wantStr, output)
				}
			}
			for _, notWantStr := range tt.notWant {
				if strings.Contains(output, notWantStr) {
					t.Errorf("Output should not contain %q, got:\n%s", notWantStr, output)
				}
			}
		})
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	exporter := &MarkdownExporter{}
	if got := exporter.Extension(); got != "md" {
		t.Errorf("MarkdownExporter.Extension() = %v, want md", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		notWant []string
	}{
		{
			name:  "basic text",
			input: "Hello world",
			want:  []string{"Hello world"},
		},
		{
			name:    "markdown bold",
			input:   "This is **bold** text",
			want:    []string{"\\*\\*bold\\*\\*"},
			notWant: []string{"**bold**"},
		},
		{
			name:    "markdown underline",
			input:   "This is __underlined__ text",
			want:    []string{"\\_\\_underlined\\_\\_"},
			notWant: []string{"__underlined__"},
		},
		{
			name:  "code block preserved",
			input: "```go\npackage main\n```",
			want:  []string{"```go", "package main", "```"},
		},
		{
			name:    "mixed content",
			input:   "Regular text **bold** and ```code```",
			want:    []string{"\\*\\*bold\\*\\*", "```code```"},
			notWant: []string{"**bold**"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escapeMarkdown(tt.input)
			for _, wantStr := range tt.want {
				if !strings.Contains(got, wantStr) {
					t.Errorf("escapeMarkdown() should contain %q, got: %s", wantStr, got)
				}
			}
			for _, notWantStr := range tt.notWant {
				if strings.Contains(got, notWantStr) {
					t.Errorf("escapeMarkdown() should not contain %q, got: %s", notWantStr, got)
				}
			}
		})
	}
}
