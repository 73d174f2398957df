package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const transcriptCacheVersion = "1.0"

// TranscriptCache archives finished conversations: one JSON file per session
// plus a YAML index.
type TranscriptCache struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	CacheVersion string    `yaml:"cache_version"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// TranscriptIndexEntry represents a transcript entry in the index
type TranscriptIndexEntry struct {
	SessionID    string    `yaml:"session_id"`
	Title        string    `yaml:"title,omitempty"`
	CreatedAt    time.Time `yaml:"created_at,omitempty"`
	SavedAt      time.Time `yaml:"saved_at"`
	MessageCount int       `yaml:"message_count"`
	SourceCount  int       `yaml:"source_count"`
}

// TranscriptIndex represents the YAML index of all transcripts
type TranscriptIndex struct {
	Transcripts []TranscriptIndexEntry `yaml:"transcripts"`
	Metadata    CacheMetadata          `yaml:"metadata"`
}

// NewTranscriptCache creates a cache rooted at cacheDir
func NewTranscriptCache(cacheDir string) *TranscriptCache {
	return &TranscriptCache{cacheDir: cacheDir}
}

// EnsureCacheDir ensures the cache directory exists
func (tc *TranscriptCache) EnsureCacheDir() error {
	return os.MkdirAll(tc.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (tc *TranscriptCache) GetCacheDir() string {
	return tc.cacheDir
}

// GetIndexPath returns the path to the transcript index YAML file
func (tc *TranscriptCache) GetIndexPath() string {
	return filepath.Join(tc.cacheDir, "transcripts.yaml")
}

// GetTranscriptPath returns the path to a session's transcript file
func (tc *TranscriptCache) GetTranscriptPath(sessionID string) string {
	return filepath.Join(tc.cacheDir, fmt.Sprintf("transcript_%s.json", sessionID))
}

// LoadIndex loads the transcript index. A missing index is an empty one.
func (tc *TranscriptCache) LoadIndex() (*TranscriptIndex, error) {
	data, err := os.ReadFile(tc.GetIndexPath())
	if os.IsNotExist(err) {
		return &TranscriptIndex{}, nil
	}
	if err != nil {
		return nil, &StorageError{Path: tc.GetIndexPath(), Op: "get", Err: err}
	}

	var index TranscriptIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &index, nil
}

// SaveIndex saves the transcript index
func (tc *TranscriptCache) SaveIndex(index *TranscriptIndex) error {
	if err := tc.EnsureCacheDir(); err != nil {
		return &StorageError{Path: tc.cacheDir, Op: "set", Err: err}
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(tc.GetIndexPath(), data, 0644)
}

// SaveTranscript writes a transcript file and adds or replaces its index entry
func (tc *TranscriptCache) SaveTranscript(t *Transcript) error {
	if t == nil || t.Session.ID == "" {
		return &ValidationError{Field: "transcript", Reason: "missing session id"}
	}
	if err := tc.EnsureCacheDir(); err != nil {
		return &StorageError{Path: tc.cacheDir, Op: "set", Err: err}
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(tc.GetTranscriptPath(t.Session.ID), data, 0644); err != nil {
		return &StorageError{Path: tc.GetTranscriptPath(t.Session.ID), Op: "set", Err: err}
	}

	index, err := tc.LoadIndex()
	if err != nil {
		return err
	}
	now := time.Now()
	if index.Metadata.CacheVersion == "" {
		index.Metadata = CacheMetadata{CacheVersion: transcriptCacheVersion, CreatedAt: now}
	}
	index.Metadata.UpdatedAt = now

	entry := indexEntryFor(t)
	found := false
	for i, existing := range index.Transcripts {
		if existing.SessionID == entry.SessionID {
			index.Transcripts[i] = entry
			found = true
			break
		}
	}
	if !found {
		index.Transcripts = append(index.Transcripts, entry)
	}

	LogDebug("Archived transcript %s (%d messages)", t.Session.ID, len(t.Messages))
	return tc.SaveIndex(index)
}

// LoadTranscript loads a single transcript from its cache file
func (tc *TranscriptCache) LoadTranscript(sessionID string) (*Transcript, error) {
	path := tc.GetTranscriptPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "get", Err: err}
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &t, nil
}

// ListTranscripts returns index entries, most recently saved first
func (tc *TranscriptCache) ListTranscripts() ([]TranscriptIndexEntry, error) {
	index, err := tc.LoadIndex()
	if err != nil {
		return nil, err
	}
	entries := append([]TranscriptIndexEntry(nil), index.Transcripts...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
	return entries, nil
}

// LoadAllTranscripts loads every indexed transcript, skipping unreadable ones
func (tc *TranscriptCache) LoadAllTranscripts() ([]*Transcript, error) {
	entries, err := tc.ListTranscripts()
	if err != nil {
		return nil, err
	}

	var transcripts []*Transcript
	for _, entry := range entries {
		t, err := tc.LoadTranscript(entry.SessionID)
		if err != nil {
			LogWarn("Skipping transcript %s: %v", entry.SessionID, err)
			continue
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, nil
}

// ClearCache removes every transcript and the index
func (tc *TranscriptCache) ClearCache() error {
	index, err := tc.LoadIndex()
	if err == nil {
		for _, entry := range index.Transcripts {
			_ = os.Remove(tc.GetTranscriptPath(entry.SessionID))
		}
	}

	if err := os.Remove(tc.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func indexEntryFor(t *Transcript) TranscriptIndexEntry {
	entry := TranscriptIndexEntry{
		SessionID:    t.Session.ID,
		CreatedAt:    t.Session.CreatedAt,
		SavedAt:      t.SavedAt,
		MessageCount: len(t.Messages),
	}
	for _, m := range t.Messages {
		if entry.Title == "" && m.Role == RoleUser {
			entry.Title = truncate(m.Content, 60)
		}
		if m.Metadata != nil {
			entry.SourceCount += len(m.Metadata.Sources)
		}
	}
	return entry
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
