package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

var testTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestStore opens a fresh sqlite store under t.TempDir().
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithDriver(t, DriverSQLite)
}

func newTestStoreWithDriver(t *testing.T, driver Driver) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Options{Driver: driver, DSN: path})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser inserts a user with a throwaway hash.
func seedUser(t *testing.T, q *Queries, name string) domain.User {
	t.Helper()
	u := domain.User{ID: uuid.New(), Username: name, PasswordHash: "x", CreatedAt: testTime}
	if err := q.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("InsertUser(%q) failed: %v", name, err)
	}
	return u
}

func seedProject(t *testing.T, q *Queries, identifier string, owner uuid.UUID) domain.Project {
	t.Helper()
	p := domain.Project{
		ID:         uuid.New(),
		Identifier: identifier,
		Name:       identifier,
		StartDate:  testTime,
		OwnerID:    owner,
		State:      domain.ProjectPlanned,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
	if err := q.InsertProject(context.Background(), p); err != nil {
		t.Fatalf("InsertProject(%q) failed: %v", identifier, err)
	}
	return p
}

func seedPhase(t *testing.T, q *Queries, projectID uuid.UUID, code domain.PhaseCode) domain.Phase {
	t.Helper()
	p := domain.Phase{
		ID:        uuid.New(),
		ProjectID: projectID,
		Code:      code,
		State:     domain.PhaseNotStarted,
		Name:      string(code),
		Order:     code.Ordinal(),
	}
	if err := q.InsertPhase(context.Background(), p); err != nil {
		t.Fatalf("InsertPhase(%s) failed: %v", code, err)
	}
	return p
}

func seedItem(t *testing.T, q *Queries, phaseID uuid.UUID, variant domain.ItemVariant, number int, creator uuid.UUID) domain.PhaseItem {
	t.Helper()
	it := domain.PhaseItem{
		ID:        uuid.New(),
		PhaseID:   phaseID,
		Variant:   variant,
		State:     domain.ItemPlanned,
		Name:      "item",
		Number:    number,
		CreatedBy: creator,
		CreatedAt: testTime,
	}
	if err := q.InsertItem(context.Background(), it); err != nil {
		t.Fatalf("InsertItem() failed: %v", err)
	}
	return it
}

func seedDocument(t *testing.T, q *Queries, itemID, creator uuid.UUID) domain.Document {
	t.Helper()
	d := domain.Document{ID: uuid.New(), PhaseItemID: itemID, Title: "doc", CreatedBy: creator, CreatedAt: testTime}
	if err := q.InsertDocument(context.Background(), d); err != nil {
		t.Fatalf("InsertDocument() failed: %v", err)
	}
	return d
}

// countRows counts rows in table. Table names are test constants.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
