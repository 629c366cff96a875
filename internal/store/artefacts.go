package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertArtefact inserts a catalog artefact. A duplicate name returns
// ErrUniqueViolation.
func (q *Queries) InsertArtefact(ctx context.Context, a domain.Artefact) error {
	_, err := q.exec(ctx, `INSERT INTO artefacts (Id, Name, Description) VALUES (?, ?, ?)`,
		a.ID, a.Name, nullString(a.Description))
	if err != nil {
		return fmt.Errorf("insert artefact: %w", err)
	}
	return nil
}

func scanArtefact(s scanner) (domain.Artefact, error) {
	var a domain.Artefact
	var desc sql.NullString
	if err := s.Scan(&a.ID, &a.Name, &desc); err != nil {
		return domain.Artefact{}, err
	}
	a.Description = desc.String
	return a, nil
}

// GetArtefact retrieves a catalog artefact by id.
func (q *Queries) GetArtefact(ctx context.Context, id uuid.UUID) (domain.Artefact, error) {
	a, err := scanArtefact(q.queryRow(ctx, `SELECT Id, Name, Description FROM artefacts WHERE Id = ?`, id))
	if err != nil {
		return domain.Artefact{}, notFound(err, "get artefact")
	}
	return a, nil
}

// GetArtefactByName retrieves a catalog artefact by name.
func (q *Queries) GetArtefactByName(ctx context.Context, name string) (domain.Artefact, error) {
	a, err := scanArtefact(q.queryRow(ctx, `SELECT Id, Name, Description FROM artefacts WHERE Name = ?`, name))
	if err != nil {
		return domain.Artefact{}, notFound(err, "get artefact by name")
	}
	return a, nil
}

// ListArtefacts returns the whole catalog ordered by name.
func (q *Queries) ListArtefacts(ctx context.Context) ([]domain.Artefact, error) {
	rows, err := q.query(ctx, `SELECT Id, Name, Description FROM artefacts ORDER BY Name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query artefacts: %w", err)
	}
	return collect(rows, "artefact", scanArtefact)
}

// DeleteArtefact removes a catalog entry; its phase assignments cascade.
func (q *Queries) DeleteArtefact(ctx context.Context, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM artefacts WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete artefact: %w", err)
	}
	return requireAffected(res, "delete artefact")
}

// InsertPhaseArtefact assigns an artefact to a phase. A second assignment
// of the same pair returns ErrUniqueViolation.
func (q *Queries) InsertPhaseArtefact(ctx context.Context, pa domain.PhaseArtefact) error {
	_, err := q.exec(ctx, `
		INSERT INTO phase_artefacts (PhaseId, ArtefactId, DocumentId, Registrado) VALUES (?, ?, ?, ?)
	`, pa.PhaseID, pa.ArtefactID, nullUUID(pa.DocumentID), pa.Registered)
	if err != nil {
		return fmt.Errorf("insert phase artefact: %w", err)
	}
	return nil
}

func scanPhaseArtefact(s scanner) (domain.PhaseArtefact, error) {
	var pa domain.PhaseArtefact
	var doc uuid.NullUUID
	if err := s.Scan(&pa.PhaseID, &pa.ArtefactID, &doc, &pa.Registered); err != nil {
		return domain.PhaseArtefact{}, err
	}
	pa.DocumentID = uuidPtr(doc)
	return pa, nil
}

// GetPhaseArtefact retrieves a phase_artefacts row by key.
func (q *Queries) GetPhaseArtefact(ctx context.Context, k domain.PhaseArtefactKey) (domain.PhaseArtefact, error) {
	pa, err := scanPhaseArtefact(q.queryRow(ctx, `
		SELECT PhaseId, ArtefactId, DocumentId, Registrado FROM phase_artefacts WHERE PhaseId = ? AND ArtefactId = ?
	`, k.PhaseID, k.ArtefactID))
	if err != nil {
		return domain.PhaseArtefact{}, notFound(err, "get phase artefact")
	}
	return pa, nil
}

// ListPhaseArtefacts returns a phase's join rows ordered by artefact name.
func (q *Queries) ListPhaseArtefacts(ctx context.Context, phaseID uuid.UUID) ([]domain.PhaseArtefact, error) {
	rows, err := q.query(ctx, `
		SELECT pa.PhaseId, pa.ArtefactId, pa.DocumentId, pa.Registrado
		FROM phase_artefacts pa
		JOIN artefacts a ON a.Id = pa.ArtefactId
		WHERE pa.PhaseId = ?
		ORDER BY a.Name ASC
	`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("query phase artefacts: %w", err)
	}
	return collect(rows, "phase artefact", scanPhaseArtefact)
}

// ListArtefactsByPhase returns the catalog entries assigned to a phase.
func (q *Queries) ListArtefactsByPhase(ctx context.Context, phaseID uuid.UUID) ([]domain.Artefact, error) {
	rows, err := q.query(ctx, `
		SELECT a.Id, a.Name, a.Description
		FROM artefacts a
		JOIN phase_artefacts pa ON pa.ArtefactId = a.Id
		WHERE pa.PhaseId = ?
		ORDER BY a.Name ASC
	`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("query artefacts by phase: %w", err)
	}
	return collect(rows, "artefact", scanArtefact)
}

// UpdatePhaseArtefact overwrites the registration flag and document.
func (q *Queries) UpdatePhaseArtefact(ctx context.Context, pa domain.PhaseArtefact) error {
	res, err := q.exec(ctx, `
		UPDATE phase_artefacts SET DocumentId = ?, Registrado = ? WHERE PhaseId = ? AND ArtefactId = ?
	`, nullUUID(pa.DocumentID), pa.Registered, pa.PhaseID, pa.ArtefactID)
	if err != nil {
		return fmt.Errorf("update phase artefact: %w", err)
	}
	return requireAffected(res, "update phase artefact")
}

// DeletePhaseArtefact removes only the join row.
func (q *Queries) DeletePhaseArtefact(ctx context.Context, k domain.PhaseArtefactKey) error {
	res, err := q.exec(ctx, `DELETE FROM phase_artefacts WHERE PhaseId = ? AND ArtefactId = ?`, k.PhaseID, k.ArtefactID)
	if err != nil {
		return fmt.Errorf("delete phase artefact: %w", err)
	}
	return requireAffected(res, "delete phase artefact")
}
