package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a started run with the given start time in unix ms.
func createTestRun(t *testing.T, s *Store, id string, startedMS int64) {
	t.Helper()
	err := s.CreateRun(context.Background(), Run{
		ID:        id,
		Suite:     "todomvc",
		Driver:    "inproc",
		StartedAt: time.UnixMilli(startedMS),
	})
	if err != nil {
		t.Fatalf("CreateRun(%s) failed: %v", id, err)
	}
}
