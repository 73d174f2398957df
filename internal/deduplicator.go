package internal

import (
	"strings"
)

// trackingParams are query parameters that never change the page a source points to
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"sessionid":    true,
	"sid":          true,
	"_ga":          true,
	"fbclid":       true,
}

// Deduplicator removes duplicate references
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Deduplicate drops references whose normalized URL was already seen and renumbers the
// survivors 1..N in their original order. References without a URL are kept.
func (d *Deduplicator) Deduplicate(refs []Reference) []Reference {
	seen := make(map[string]bool)
	unique := make([]Reference, 0, len(refs))

	for _, ref := range refs {
		key := NormalizeURL(ref.URL)
		if key != "" {
			if seen[key] {
				LogDebug("Skipping duplicate source %s (normalized: %s)", ref.URL, key)
				continue
			}
			seen[key] = true
		}
		ref.ID = len(unique) + 1
		unique = append(unique, ref)
	}

	if len(unique) != len(refs) {
		LogDebug("Deduplicated sources: %d -> %d", len(refs), len(unique))
	}
	return unique
}

// NormalizeURL reduces a URL to the form used for duplicate detection: lowercased,
// without scheme, "www.", fragment, tracking parameters or trailing slash.
func NormalizeURL(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return ""
	}

	normalized = strings.TrimPrefix(normalized, "https://")
	normalized = strings.TrimPrefix(normalized, "http://")
	normalized = strings.TrimPrefix(normalized, "www.")

	if i := strings.Index(normalized, "#"); i >= 0 {
		normalized = normalized[:i]
	}

	if base, query, ok := strings.Cut(normalized, "?"); ok {
		var kept []string
		for _, param := range strings.Split(query, "&") {
			if param == "" {
				continue
			}
			key, _, _ := strings.Cut(param, "=")
			if trackingParams[key] {
				continue
			}
			kept = append(kept, param)
		}
		normalized = base
		if len(kept) > 0 {
			normalized += "?" + strings.Join(kept, "&")
		}
	}

	return strings.TrimSuffix(normalized, "/")
}
