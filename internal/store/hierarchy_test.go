package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

func TestInsertPhase_DuplicateCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	first := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)

	dup := domain.Phase{ID: uuid.New(), ProjectID: p.ID, Code: domain.PhaseInception, State: domain.PhaseInProgress, Name: "other", Order: 1}
	if err := s.InsertPhase(ctx, dup); !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("InsertPhase() duplicate error = %v, want ErrUniqueViolation", err)
	}

	got, err := s.GetPhase(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPhase() failed: %v", err)
	}
	if got.Name != string(domain.PhaseInception) || got.State != domain.PhaseNotStarted {
		t.Errorf("existing phase changed: %+v", got)
	}
}

func TestListPhases_OrderedByOrdinal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	for _, code := range []domain.PhaseCode{domain.PhaseTransition, domain.PhaseInception, domain.PhaseConstruction, domain.PhaseElaboration} {
		seedPhase(t, s.Queries, p.ID, code)
	}

	phases, err := s.ListPhases(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListPhases() failed: %v", err)
	}
	if len(phases) != 4 {
		t.Fatalf("ListPhases() returned %d phases, want 4", len(phases))
	}
	for i, ph := range phases {
		if ph.Code != domain.PhaseCodes[i] || ph.Order != i+1 {
			t.Errorf("phases[%d] = %s/%d, want %s/%d", i, ph.Code, ph.Order, domain.PhaseCodes[i], i+1)
		}
	}
}

func TestItems_NumberingScopes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)

	it1 := seedItem(t, s.Queries, ph.ID, domain.Iteration{}, 1, u.ID)
	// Microincrement 1 under iteration 1 does not collide with iteration 1.
	seedItem(t, s.Queries, ph.ID, domain.Microincrement{Parent: it1.ID}, 1, u.ID)

	dup := domain.PhaseItem{
		ID: uuid.New(), PhaseID: ph.ID, Variant: domain.Iteration{}, State: domain.ItemPlanned,
		Name: "again", Number: 1, CreatedBy: u.ID, CreatedAt: testTime,
	}
	if err := s.InsertItem(ctx, dup); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("InsertItem() duplicate number error = %v, want ErrUniqueViolation", err)
	}

	next, err := s.NextItemNumber(ctx, ph.ID, domain.Iteration{})
	if err != nil || next != 2 {
		t.Errorf("NextItemNumber(iteration) = %d, %v; want 2, nil", next, err)
	}
	next, err = s.NextItemNumber(ctx, ph.ID, domain.Microincrement{Parent: it1.ID})
	if err != nil || next != 2 {
		t.Errorf("NextItemNumber(microincrement) = %d, %v; want 2, nil", next, err)
	}

	children, err := s.ListChildren(ctx, it1.ID)
	if err != nil || len(children) != 1 {
		t.Fatalf("ListChildren() = %d items, %v; want 1", len(children), err)
	}
	if pid := children[0].ParentID(); pid == nil || *pid != it1.ID {
		t.Errorf("child ParentID() = %v, want %v", pid, it1.ID)
	}
}

func TestDeleteItem_RestrictedWhileChildrenExist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)
	it := seedItem(t, s.Queries, ph.ID, domain.Iteration{}, 1, u.ID)
	mi := seedItem(t, s.Queries, ph.ID, domain.Microincrement{Parent: it.ID}, 1, u.ID)

	if err := s.DeleteItem(ctx, it.ID); !errors.Is(err, ErrForeignKeyViolation) {
		t.Fatalf("DeleteItem(parent) error = %v, want ErrForeignKeyViolation", err)
	}
	if err := s.DeleteItem(ctx, mi.ID); err != nil {
		t.Fatalf("DeleteItem(child) failed: %v", err)
	}
	if err := s.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("DeleteItem(parent) after child removed failed: %v", err)
	}
	if _, err := s.GetItem(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeletePhase_CascadesSubtree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)
	it := seedItem(t, s.Queries, ph.ID, domain.Iteration{}, 1, u.ID)
	mi := seedItem(t, s.Queries, ph.ID, domain.Microincrement{Parent: it.ID}, 1, u.ID)
	doc := seedDocument(t, s.Queries, mi.ID, u.ID)

	n, err := s.NextDocumentVersion(ctx, doc.ID)
	if err != nil {
		t.Fatalf("NextDocumentVersion() failed: %v", err)
	}
	v := domain.DocumentVersion{ID: uuid.New(), DocumentID: doc.ID, VersionNumber: n, CreatedBy: u.ID, CreatedAt: testTime}
	if err := s.InsertDocumentVersion(ctx, v); err != nil {
		t.Fatalf("InsertDocumentVersion() failed: %v", err)
	}
	if err := s.InsertItemMember(ctx, domain.ItemMember{
		ItemMemberKey: domain.ItemMemberKey{PhaseItemID: it.ID, UserID: u.ID},
		Role:          "Reviewer",
	}); err != nil {
		t.Fatalf("InsertItemMember() failed: %v", err)
	}
	art := domain.Artefact{ID: uuid.New(), Name: "Vision"}
	if err := s.InsertArtefact(ctx, art); err != nil {
		t.Fatalf("InsertArtefact() failed: %v", err)
	}
	if err := s.InsertPhaseArtefact(ctx, domain.PhaseArtefact{
		PhaseArtefactKey: domain.PhaseArtefactKey{PhaseID: ph.ID, ArtefactID: art.ID},
	}); err != nil {
		t.Fatalf("InsertPhaseArtefact() failed: %v", err)
	}

	if err := s.DeletePhase(ctx, ph.ID); err != nil {
		t.Fatalf("DeletePhase() failed: %v", err)
	}

	for _, table := range []string{"phase_items", "phase_item_users", "documents", "document_versions", "phase_artefacts"} {
		if n := countRows(t, s, table); n != 0 {
			t.Errorf("%s rows after phase delete = %d, want 0", table, n)
		}
	}
	// The catalog entry outlives its assignments.
	if n := countRows(t, s, "artefacts"); n != 1 {
		t.Errorf("artefacts rows = %d, want 1", n)
	}
}

func TestUpdateProject_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)

	p.Name = "Renamed"
	p.Description = "about"
	p.State = domain.ProjectActive
	if err := s.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() failed: %v", err)
	}
	got, err := s.GetProjectByIdentifier(ctx, "PROJ-1")
	if err != nil {
		t.Fatalf("GetProjectByIdentifier() failed: %v", err)
	}
	if got.Name != "Renamed" || got.Description != "about" || got.State != domain.ProjectActive {
		t.Errorf("GetProjectByIdentifier() = %+v", got)
	}
	if got.OwnerID != u.ID {
		t.Errorf("OwnerID = %v, want %v", got.OwnerID, u.ID)
	}
}
