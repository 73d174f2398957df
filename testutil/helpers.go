package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// CreateTempDir creates a temporary directory that is removed when the test ends
func CreateTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "chat-session-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// WriteTempFile writes data to a file inside a fresh temp dir and returns its path
func WriteTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(CreateTempDir(t), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// DecodeJSONLines decodes newline-delimited JSON objects, failing on any bad line
func DecodeJSONLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var objects []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		var obj map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("Line %d is not valid JSON: %v: %s", n, err, scanner.Text())
		}
		objects = append(objects, obj)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to read lines: %v", err)
	}
	return objects
}
