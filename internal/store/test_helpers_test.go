package store

import (
	"context"
	"path/filepath"
	"testing"
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

// seedReady inserts phones in the ready state.
func seedReady(t *testing.T, s *Store, phones ...string) {
	t.Helper()
	if _, err := s.InsertReady(context.Background(), phones); err != nil {
		t.Fatalf("InsertReady() failed: %v", err)
	}
}

func ptr(v int64) *int64 { return &v }
