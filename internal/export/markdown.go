package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/chat-session/internal"
)

// MarkdownExporter exports transcripts in Markdown format
type MarkdownExporter struct{}

// Export writes a readable Markdown transcript. Assistant replies are already
// Markdown and are written as-is; user turns are escaped.
func (e *MarkdownExporter) Export(transcript *internal.Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Conversation %s\n\n", transcript.Session.ID)

	if !transcript.Session.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Started:** %s  \n", transcript.Session.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !transcript.SavedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Saved:** %s  \n", transcript.SavedAt.UTC().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(transcript.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range transcript.Messages {
		timestamp := ""
		if msg.Timestamp != "" {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp)
		}

		content := msg.Content
		speaker := "Assistant"
		if msg.Role == internal.RoleUser {
			speaker = "You"
			content = escapeMarkdown(content)
		}

		_, _ = fmt.Fprintf(w, "### %s%s\n\n%s\n\n", speaker, timestamp, content)

		if msg.Metadata != nil && len(msg.Metadata.Sources) > 0 {
			_, _ = fmt.Fprintf(w, "**Sources:**\n\n")
			for _, ref := range msg.Metadata.Sources {
				_, _ = fmt.Fprintf(w, "%d. %s\n", ref.ID, sourceLink(ref))
			}
			_, _ = fmt.Fprintln(w)
		}

		if i < len(transcript.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func sourceLink(ref internal.Reference) string {
	title := ref.Title
	if ref.Section != "" {
		title += " › " + ref.Section
	}
	if ref.URL == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, ref.URL)
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
