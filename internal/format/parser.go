// Package format turns raw assistant text into a tree of typed segments and
// renders that tree for a terminal.
package format

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SegmentType discriminates Segment
type SegmentType string

const (
	SegmentParagraph     SegmentType = "paragraph"
	SegmentHeader        SegmentType = "header"
	SegmentBullet        SegmentType = "bullet"
	SegmentNumbered      SegmentType = "numbered"
	SegmentBulletGroup   SegmentType = "bullet_group"
	SegmentNumberedGroup SegmentType = "numbered_group"
	SegmentLinebreak     SegmentType = "linebreak"
)

// Segment is one node of a parsed message. Which fields are set depends on Type:
// headers carry Level and Text, numbered items Number and SubItems, bullets
// IndentLevel, groups Items.
type Segment struct {
	Type        SegmentType `json:"type" yaml:"type"`
	Text        string      `json:"text,omitempty" yaml:"text,omitempty"`
	Spans       []Span      `json:"content,omitempty" yaml:"content,omitempty"`
	Level       int         `json:"level,omitempty" yaml:"level,omitempty"`
	Number      int         `json:"number,omitempty" yaml:"number,omitempty"`
	IndentLevel int         `json:"indent_level,omitempty" yaml:"indent_level,omitempty"`
	Items       []Segment   `json:"items,omitempty" yaml:"items,omitempty"`
	SubItems    []Segment   `json:"sub_items,omitempty" yaml:"sub_items,omitempty"`
}

var (
	hrPattern       = regexp.MustCompile(`^\s*[-—–]{3,}\s*$`)
	headerPattern   = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	numberedPattern = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)
	bulletPattern   = regexp.MustCompile(`^(\s*)([-*•])\s+(.+)$`)
)

// Parse converts raw message text into grouped segments. It never fails:
// anything that is not recognised becomes paragraph text.
func Parse(text string) []Segment {
	return groupSegments(classifyLines(text))
}

// classifyLines is the first pass: one segment per meaningful line, with runs
// of blank lines and rules collapsed to a single linebreak.
func classifyLines(text string) []Segment {
	var segments []Segment

	addBreak := func() {
		if len(segments) > 0 && segments[len(segments)-1].Type != SegmentLinebreak {
			segments = append(segments, Segment{Type: SegmentLinebreak})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.TrimSpace(line) == "" || hrPattern.MatchString(line) {
			addBreak()
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			segments = append(segments, Segment{
				Type:  SegmentHeader,
				Level: len(m[1]),
				Text:  title,
				Spans: ParseInline(title),
			})
			continue
		}

		if m := numberedPattern.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				segments = append(segments, Segment{
					Type:   SegmentNumbered,
					Number: n,
					Spans:  ParseInline(strings.TrimSpace(m[2])),
				})
				continue
			}
		}

		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			segments = append(segments, Segment{
				Type:        SegmentBullet,
				IndentLevel: utf8.RuneCountInString(m[1]),
				Spans:       ParseInline(strings.TrimSpace(m[3])),
			})
			continue
		}

		if spans := ParseInline(strings.TrimSpace(line)); len(spans) > 0 {
			segments = append(segments, Segment{Type: SegmentParagraph, Spans: spans})
		}
	}

	return segments
}

// groupSegments is the second pass. Each numbered item becomes its own
// numbered_group and absorbs the bullets that follow it, skipping linebreaks.
// Remaining runs of directly adjacent bullets become bullet_groups.
func groupSegments(segments []Segment) []Segment {
	grouped := make([]Segment, 0, len(segments))

	for i := 0; i < len(segments); {
		seg := segments[i]

		switch seg.Type {
		case SegmentNumbered:
			lastBullet := -1
			for j := i + 1; j < len(segments); j++ {
				if segments[j].Type == SegmentLinebreak {
					continue
				}
				if segments[j].Type != SegmentBullet {
					break
				}
				seg.SubItems = append(seg.SubItems, segments[j])
				lastBullet = j
			}
			grouped = append(grouped, Segment{Type: SegmentNumberedGroup, Items: []Segment{seg}})
			if lastBullet < 0 {
				i++
			} else {
				i = lastBullet + 1
			}

		case SegmentBullet:
			j := i
			var items []Segment
			for j < len(segments) && segments[j].Type == SegmentBullet {
				items = append(items, segments[j])
				j++
			}
			grouped = append(grouped, Segment{Type: SegmentBulletGroup, Items: items})
			i = j

		default:
			grouped = append(grouped, seg)
			i++
		}
	}

	return grouped
}
