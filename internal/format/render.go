package format

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/iksnae/chat-session/internal"
)

// DefaultWidth is used when the output width is unknown
const DefaultWidth = 80

var (
	headerStyles = map[int]lipgloss.Style{
		1: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("212")),
		2: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		3: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")),
	}
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	refStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	roleStyles  = map[string]lipgloss.Style{
		internal.RoleUser:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		internal.RoleAssistant: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
	}
)

// Renderer draws segment trees as styled, wrapped terminal text
type Renderer struct {
	width int
}

// NewRenderer creates a Renderer wrapping at width columns
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{width: width}
}

// RenderMessage renders one conversation turn. Assistant turns are parsed;
// headers are linked to the turn's sources, which are listed at the end.
func (r *Renderer) RenderMessage(msg internal.ConversationMessage) string {
	var b strings.Builder

	label := "You"
	if msg.Role == internal.RoleAssistant {
		label = "Assistant"
	}
	b.WriteString(roleStyles[msg.Role].Render(label))
	if ts := msg.GetTimestamp(); !ts.IsZero() {
		b.WriteString(refStyle.Render(" · " + ts.Local().Format("15:04")))
	}
	b.WriteString("\n")

	if msg.Role != internal.RoleAssistant {
		b.WriteString(wordwrap.String(msg.Content, r.width))
		b.WriteString("\n")
		return b.String()
	}

	var refs []internal.Reference
	if msg.Metadata != nil {
		refs = msg.Metadata.Sources
	}
	b.WriteString(r.Render(Parse(msg.Content), refs))
	return b.String()
}

// Render draws segments, followed by a source list when refs is non-empty
func (r *Renderer) Render(segments []Segment, refs []internal.Reference) string {
	var lines []string
	for _, seg := range segments {
		lines = append(lines, r.renderSegment(seg, refs))
	}

	if len(refs) > 0 {
		lines = append(lines, "", markerStyle.Render("Sources"))
		for _, ref := range refs {
			lines = append(lines, r.renderReference(ref))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (r *Renderer) renderSegment(seg Segment, refs []internal.Reference) string {
	switch seg.Type {
	case SegmentLinebreak:
		return ""

	case SegmentHeader:
		style, ok := headerStyles[seg.Level]
		if !ok {
			style = headerStyles[3]
		}
		text := style.Render(PlainText(seg.Spans))
		if ref, ok := MatchReference(PlainText(seg.Spans), refs); ok {
			text += " " + refStyle.Render(fmt.Sprintf("[%d]", ref.ID))
		}
		return wordwrap.String(text, r.width)

	case SegmentBulletGroup:
		items := make([]string, 0, len(seg.Items))
		for _, item := range seg.Items {
			items = append(items, r.renderItem(strings.Repeat(" ", item.IndentLevel), "•", item.Spans))
		}
		return strings.Join(items, "\n")

	case SegmentNumberedGroup:
		var items []string
		for _, item := range seg.Items {
			items = append(items, r.renderItem("", fmt.Sprintf("%d.", item.Number), item.Spans))
			for _, sub := range item.SubItems {
				items = append(items, r.renderItem("   ", "•", sub.Spans))
			}
		}
		return strings.Join(items, "\n")

	case SegmentBullet:
		return r.renderItem(strings.Repeat(" ", seg.IndentLevel), "•", seg.Spans)

	case SegmentNumbered:
		return r.renderItem("", fmt.Sprintf("%d.", seg.Number), seg.Spans)

	default:
		return wordwrap.String(r.renderSpans(seg.Spans), r.width)
	}
}

// renderItem draws a list item with a hanging indent under its marker
func (r *Renderer) renderItem(indent, marker string, spans []Span) string {
	prefix := indent + marker + " "
	hang := strings.Repeat(" ", lipgloss.Width(prefix))
	wrapped := wordwrap.String(r.renderSpans(spans), max(r.width-len(hang), 10))

	lines := strings.Split(wrapped, "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = indent + markerStyle.Render(marker) + " " + lines[i]
		} else {
			lines[i] = hang + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) renderSpans(spans []Span) string {
	var b strings.Builder
	for _, span := range spans {
		style := lipgloss.NewStyle().Bold(span.Has(FormatBold)).Underline(span.Has(FormatUnderline))
		if span.Type == SpanLink {
			b.WriteString(style.Inherit(linkStyle).Render(span.Content))
			if span.URL != span.Content {
				b.WriteString(refStyle.Render(" (" + span.URL + ")"))
			}
			continue
		}
		b.WriteString(style.Render(span.Content))
	}
	return b.String()
}

func (r *Renderer) renderReference(ref internal.Reference) string {
	title := ref.Title
	if title == "" {
		title = ref.Domain
	}
	if ref.Section != "" {
		title += " › " + ref.Section
	}
	line := fmt.Sprintf("[%d] %s", ref.ID, title)
	if ref.URL != "" {
		line += " " + linkStyle.Render(ref.URL)
	}
	return wordwrap.String(line, r.width)
}

// RenderMarkdown renders raw message text with glamour instead of the segment
// renderer. It returns the input unchanged if glamour fails.
func RenderMarkdown(text string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		internal.LogDebug("glamour renderer unavailable: %v", err)
		return text
	}
	out, err := tr.Render(text)
	if err != nil {
		internal.LogDebug("glamour render failed: %v", err)
		return text
	}
	return out
}
