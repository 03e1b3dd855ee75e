package helpers

import (
	"context"
	"testing"
	"time"

	store "github.com/kaiwa-dev/kaiwa/internal/repository"
)

// NewTestSQLiteStore returns a migrated in-memory store. The store pins the
// in-memory database to a single connection, so it is safe to share across
// the goroutines a test spawns.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	// Fail here if the conversations schema is missing rather than in the
	// first query of the test proper.
	if _, err := s.CountUserConversationsSince(context.Background(), "nobody", time.Now()); err != nil {
		t.Fatalf("store schema not usable: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
