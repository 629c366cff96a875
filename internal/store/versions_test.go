package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

func seedDocumentChain(t *testing.T, s *Store) (domain.User, domain.Document) {
	t.Helper()
	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)
	it := seedItem(t, s.Queries, ph.ID, domain.Iteration{}, 1, u.ID)
	return u, seedDocument(t, s.Queries, it.ID, u.ID)
}

func TestDocumentVersions_CounterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, doc := seedDocumentChain(t, s)

	for i := 1; i <= 3; i++ {
		err := s.InTx(ctx, func(tx *Tx) error {
			n, err := tx.NextDocumentVersion(ctx, doc.ID)
			if err != nil {
				return err
			}
			return tx.InsertDocumentVersion(ctx, domain.DocumentVersion{
				ID: uuid.New(), DocumentID: doc.ID, VersionNumber: n,
				CreatedBy: u.ID, CreatedAt: testTime, Extension: "pdf", Payload: []byte{byte(n)},
			})
		})
		if err != nil {
			t.Fatalf("version %d: %v", i, err)
		}
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	max, err := s.MaxDocumentVersion(ctx, doc.ID)
	if err != nil {
		t.Fatalf("MaxDocumentVersion() failed: %v", err)
	}
	if got.LastVersionNumber != 3 || max != 3 {
		t.Errorf("LastVersionNumber = %d, max = %d; want 3, 3", got.LastVersionNumber, max)
	}

	versions, err := s.ListDocumentVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListDocumentVersions() failed: %v", err)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("versions[%d].VersionNumber = %d, want %d", i, v.VersionNumber, i+1)
		}
	}

	latest, err := s.GetLatestDocumentVersion(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetLatestDocumentVersion() failed: %v", err)
	}
	if latest.VersionNumber != 3 || !bytes.Equal(latest.Payload, []byte{3}) || latest.Extension != "pdf" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestDocumentVersions_DuplicateNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, doc := seedDocumentChain(t, s)

	v := domain.DocumentVersion{ID: uuid.New(), DocumentID: doc.ID, VersionNumber: 1, CreatedBy: u.ID, CreatedAt: testTime}
	if err := s.InsertDocumentVersion(ctx, v); err != nil {
		t.Fatalf("InsertDocumentVersion() failed: %v", err)
	}
	v.ID = uuid.New()
	if err := s.InsertDocumentVersion(ctx, v); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("duplicate InsertDocumentVersion() error = %v, want ErrUniqueViolation", err)
	}
}

func TestDocumentVersions_Missing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, doc := seedDocumentChain(t, s)

	if _, err := s.GetLatestDocumentVersion(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLatestDocumentVersion(empty) error = %v, want ErrNotFound", err)
	}
	if _, err := s.NextDocumentVersion(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("NextDocumentVersion(missing) error = %v, want ErrNotFound", err)
	}
	key := domain.VersionKey{DocumentID: doc.ID, Number: 7}
	if err := s.UpdateVersionObservations(ctx, key, "late"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateVersionObservations(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocument_NullsPhaseArtefactLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)
	it := seedItem(t, s.Queries, ph.ID, domain.Iteration{}, 1, u.ID)
	doc := seedDocument(t, s.Queries, it.ID, u.ID)

	art := domain.Artefact{ID: uuid.New(), Name: "Vision"}
	if err := s.InsertArtefact(ctx, art); err != nil {
		t.Fatalf("InsertArtefact() failed: %v", err)
	}
	key := domain.PhaseArtefactKey{PhaseID: ph.ID, ArtefactID: art.ID}
	if err := s.InsertPhaseArtefact(ctx, domain.PhaseArtefact{PhaseArtefactKey: key, DocumentID: &doc.ID, Registered: true}); err != nil {
		t.Fatalf("InsertPhaseArtefact() failed: %v", err)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() failed: %v", err)
	}
	pa, err := s.GetPhaseArtefact(ctx, key)
	if err != nil {
		t.Fatalf("GetPhaseArtefact() failed: %v", err)
	}
	if pa.DocumentID != nil {
		t.Errorf("DocumentID = %v, want nil", pa.DocumentID)
	}
	if !pa.Registered {
		t.Error("Registered flag was cleared")
	}
}

func TestPhaseArtefacts_DuplicateAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)
	ph := seedPhase(t, s.Queries, p.ID, domain.PhaseInception)

	art := domain.Artefact{ID: uuid.New(), Name: "Vision"}
	if err := s.InsertArtefact(ctx, art); err != nil {
		t.Fatalf("InsertArtefact() failed: %v", err)
	}
	if err := s.InsertArtefact(ctx, domain.Artefact{ID: uuid.New(), Name: "Vision"}); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("duplicate InsertArtefact() error = %v, want ErrUniqueViolation", err)
	}

	key := domain.PhaseArtefactKey{PhaseID: ph.ID, ArtefactID: art.ID}
	if err := s.InsertPhaseArtefact(ctx, domain.PhaseArtefact{PhaseArtefactKey: key}); err != nil {
		t.Fatalf("InsertPhaseArtefact() failed: %v", err)
	}
	if err := s.InsertPhaseArtefact(ctx, domain.PhaseArtefact{PhaseArtefactKey: key, Registered: true}); !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("duplicate InsertPhaseArtefact() error = %v, want ErrUniqueViolation", err)
	}

	rows, err := s.ListPhaseArtefacts(ctx, ph.ID)
	if err != nil {
		t.Fatalf("ListPhaseArtefacts() failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Registered {
		t.Errorf("ListPhaseArtefacts() = %+v, want one unregistered row", rows)
	}

	catalog, err := s.ListArtefactsByPhase(ctx, ph.ID)
	if err != nil || len(catalog) != 1 || catalog[0].Name != "Vision" {
		t.Errorf("ListArtefactsByPhase() = %+v, %v", catalog, err)
	}
}

func TestArtifactLineage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s.Queries, "alice")
	p := seedProject(t, s.Queries, "PROJ-1", u.ID)

	id, err := s.InsertArtifact(ctx, domain.Artifact{ProjectID: p.ID, Name: "SRS", Mandatory: true, CreatedAt: testTime})
	if err != nil {
		t.Fatalf("InsertArtifact() failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		err := s.InTx(ctx, func(tx *Tx) error {
			if err := tx.TouchArtifact(ctx, id, testTime); err != nil {
				return err
			}
			max, err := tx.MaxArtifactVersion(ctx, id)
			if err != nil {
				return err
			}
			_, err = tx.InsertArtifactVersion(ctx, domain.ArtifactVersion{
				ArtifactID: id, VersionNumber: max + 1, Content: []byte("v"), CreatedBy: u.ID, CreatedAt: testTime,
			})
			return err
		})
		if err != nil {
			t.Fatalf("artifact version %d: %v", i, err)
		}
	}

	history, err := s.ListArtifactVersions(ctx, id)
	if err != nil {
		t.Fatalf("ListArtifactVersions() failed: %v", err)
	}
	want := []int{3, 2, 1}
	if len(history) != len(want) {
		t.Fatalf("history length = %d, want %d", len(history), len(want))
	}
	for i, v := range history {
		if v.VersionNumber != want[i] {
			t.Errorf("history[%d] = %d, want %d", i, v.VersionNumber, want[i])
		}
	}

	a, err := s.GetArtifact(ctx, id)
	if err != nil {
		t.Fatalf("GetArtifact() failed: %v", err)
	}
	if !a.Mandatory || a.PhaseID != nil {
		t.Errorf("GetArtifact() = %+v", a)
	}
	if _, err := s.GetArtifactVersion(ctx, id, 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArtifactVersion(missing) error = %v, want ErrNotFound", err)
	}
}
