package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/chat-session/internal"
)

// ErrUnsupportedFormat is returned by NewExporter for unknown format names
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists the canonical format names NewExporter accepts
var Formats = []string{"jsonl", "md", "yaml", "json"}

// Exporter writes an archived conversation in one file format
type Exporter interface {
	Export(transcript *internal.Transcript, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for a format name or file extension
// ("md", "markdown", ".yml", ...). Matching ignores case.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "jsonl", "ndjson":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
}
