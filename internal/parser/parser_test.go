package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Timestamp constants for test data.
const (
	tsA  = "2024-05-01T10:00:00Z"
	tsA1 = "2024-05-01T10:00:01Z"
	tsA2 = "2024-05-01T10:00:02Z"
	tsB  = "2024-05-01T10:05:00Z"
)

var (
	timeA = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	timeB = time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
)

func createTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func joinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
