package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/phasetrack/internal/store"
)

// NewStore opens a fresh sqlite store in t.TempDir() and closes it when the
// test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "phasetrack.db"),
	})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
