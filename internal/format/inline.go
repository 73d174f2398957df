package format

import (
	"regexp"
	"slices"
	"strings"
)

// SpanType is the kind of an inline run
type SpanType string

const (
	SpanText      SpanType = "text"
	SpanBold      SpanType = "bold"
	SpanUnderline SpanType = "underline"
	SpanLink      SpanType = "link"
)

// Format is an emphasis applied by an enclosing marker
type Format string

const (
	FormatBold      Format = "bold"
	FormatUnderline Format = "underline"
)

// Span is an inline run of text. Formats lists the emphasis applied to it,
// outermost first.
type Span struct {
	Type    SpanType `json:"type" yaml:"type"`
	Content string   `json:"content" yaml:"content"`
	Formats []Format `json:"applied_formats,omitempty" yaml:"applied_formats,omitempty"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
}

type inlineKind int

const (
	inlineLink inlineKind = iota
	inlineURL
	inlineBold
	inlineUnderline
)

// inlinePatterns in precedence order; precedence only breaks ties between
// matches starting at the same offset.
var inlinePatterns = []struct {
	kind inlineKind
	re   *regexp.Regexp
}{
	{inlineLink, regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)},
	{inlineURL, regexp.MustCompile(`https?://\S+`)},
	{inlineBold, regexp.MustCompile(`\*\*(.+?)\*\*`)},
	{inlineUnderline, regexp.MustCompile(`__(.+?)__`)},
}

// ParseInline resolves links, bare URLs, bold and underline markers in one
// line of text. Concatenating the span contents gives the line with the
// markers removed.
func ParseInline(text string) []Span {
	return resolveInline(text, nil)
}

// resolveInline splits text around the earliest marker match and recurses on
// the pieces. applied is the format stack inherited from enclosing markers.
func resolveInline(text string, applied []Format) []Span {
	if text == "" {
		return nil
	}

	kind, loc := earliestMatch(text)
	if loc == nil {
		return []Span{plainSpan(text, applied)}
	}

	spans := resolveInline(text[:loc[0]], applied)

	switch kind {
	case inlineLink:
		spans = append(spans, Span{
			Type:    SpanLink,
			Content: text[loc[2]:loc[3]],
			URL:     text[loc[4]:loc[5]],
			Formats: cloneFormats(applied),
		})
	case inlineURL:
		u := text[loc[0]:loc[1]]
		spans = append(spans, Span{Type: SpanLink, Content: u, URL: u, Formats: cloneFormats(applied)})
	case inlineBold:
		spans = append(spans, resolveInline(text[loc[2]:loc[3]], withFormat(applied, FormatBold))...)
	case inlineUnderline:
		spans = append(spans, resolveInline(text[loc[2]:loc[3]], withFormat(applied, FormatUnderline))...)
	}

	return append(spans, resolveInline(text[loc[1]:], applied)...)
}

func earliestMatch(text string) (inlineKind, []int) {
	var (
		bestKind inlineKind
		best     []int
	)
	for _, p := range inlinePatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			bestKind, best = p.kind, loc
		}
	}
	return bestKind, best
}

// plainSpan is the leaf case: the innermost applied format names the span
func plainSpan(text string, applied []Format) Span {
	span := Span{Type: SpanText, Content: text, Formats: cloneFormats(applied)}
	if n := len(applied); n > 0 {
		span.Type = SpanType(applied[n-1])
	}
	return span
}

func withFormat(applied []Format, f Format) []Format {
	out := make([]Format, 0, len(applied)+1)
	out = append(out, applied...)
	return append(out, f)
}

func cloneFormats(applied []Format) []Format {
	if len(applied) == 0 {
		return nil
	}
	return append([]Format(nil), applied...)
}

// PlainText concatenates span contents
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Content)
	}
	return b.String()
}

// Has reports whether the span carries format f
func (s Span) Has(f Format) bool {
	return slices.Contains(s.Formats, f)
}
