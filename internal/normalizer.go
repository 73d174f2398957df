package internal

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Field names accepted for each canonical Reference field, in priority order
var (
	referenceTitleKeys   = []string{"title", "page_title", "pageTitle"}
	referenceSectionKeys = []string{"section", "sectionTitle", "section_title"}
	referenceURLKeys     = []string{"url", "link", "sourceUrl", "source_url", "href"}
)

// Normalizer maps loosely shaped wire payloads onto the canonical model
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeReference converts any incoming source object to a Reference
func (n *Normalizer) NormalizeReference(raw map[string]any) Reference {
	ref := Reference{
		Title:   firstString(raw, referenceTitleKeys),
		Section: firstString(raw, referenceSectionKeys),
		URL:     firstString(raw, referenceURLKeys),
		Snippet: firstString(raw, []string{"snippet", "content"}),
		Domain:  firstString(raw, []string{"domain"}),
	}
	if id, ok := raw["id"]; ok {
		ref.ID = toInt(id)
	}
	if ref.Domain == "" && ref.URL != "" {
		ref.Domain = hostOf(ref.URL)
	}
	return ref
}

// NormalizeReferences converts a list of raw source objects, skipping nil entries
func (n *Normalizer) NormalizeReferences(raw []map[string]any) []Reference {
	if len(raw) == 0 {
		return nil
	}
	refs := make([]Reference, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		refs = append(refs, n.NormalizeReference(r))
	}
	return refs
}

// NormalizeRole maps server role names onto user/assistant
func (n *Normalizer) NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "bot", "ai":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// NormalizeTimestamp accepts RFC3339, naive ISO-8601 (python isoformat) or unix seconds
func (n *Normalizer) NormalizeTimestamp(v any) string {
	switch ts := v.(type) {
	case string:
		if ts == "" {
			return ""
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, ts); err == nil {
				return formatTimestamp(t)
			}
		}
		return ts
	case float64:
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return formatTimestamp(time.Unix(sec, nsec))
	case int64:
		return formatTimestamp(time.Unix(ts, 0))
	case int:
		return formatTimestamp(time.Unix(int64(ts), 0))
	default:
		return ""
	}
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
