package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertPhase inserts a phase. A second phase with the same (project, code)
// returns ErrUniqueViolation.
func (q *Queries) InsertPhase(ctx context.Context, p domain.Phase) error {
	_, err := q.exec(ctx, `
		INSERT INTO project_phases (Id, ProjectId, Code, State, Name, "Order") VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.ProjectID, string(p.Code), string(p.State), p.Name, p.Order)
	if err != nil {
		return fmt.Errorf("insert phase: %w", err)
	}
	return nil
}

const phaseColumns = `Id, ProjectId, Code, State, Name, "Order"`

func scanPhase(s scanner) (domain.Phase, error) {
	var p domain.Phase
	var code, state string
	if err := s.Scan(&p.ID, &p.ProjectID, &code, &state, &p.Name, &p.Order); err != nil {
		return domain.Phase{}, err
	}
	p.Code = domain.PhaseCode(code)
	p.State = domain.PhaseState(state)
	return p, nil
}

// GetPhase retrieves a phase by id.
func (q *Queries) GetPhase(ctx context.Context, id uuid.UUID) (domain.Phase, error) {
	p, err := scanPhase(q.queryRow(ctx, `SELECT `+phaseColumns+` FROM project_phases WHERE Id = ?`, id))
	if err != nil {
		return domain.Phase{}, notFound(err, "get phase")
	}
	return p, nil
}

// GetPhaseByCode retrieves the phase with the given code in a project.
func (q *Queries) GetPhaseByCode(ctx context.Context, projectID uuid.UUID, code domain.PhaseCode) (domain.Phase, error) {
	p, err := scanPhase(q.queryRow(ctx, `
		SELECT `+phaseColumns+` FROM project_phases WHERE ProjectId = ? AND Code = ?
	`, projectID, string(code)))
	if err != nil {
		return domain.Phase{}, notFound(err, "get phase by code")
	}
	return p, nil
}

// ListPhases returns a project's phases in display order.
func (q *Queries) ListPhases(ctx context.Context, projectID uuid.UUID) ([]domain.Phase, error) {
	rows, err := q.query(ctx, `
		SELECT `+phaseColumns+` FROM project_phases WHERE ProjectId = ? ORDER BY "Order" ASC, Id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query phases: %w", err)
	}
	return collect(rows, "phase", scanPhase)
}

// UpdatePhase overwrites a phase's name and state.
func (q *Queries) UpdatePhase(ctx context.Context, p domain.Phase) error {
	res, err := q.exec(ctx, `UPDATE project_phases SET Name = ?, State = ? WHERE Id = ?`, p.Name, string(p.State), p.ID)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return requireAffected(res, "update phase")
}

// DeletePhase deletes a phase. Its items, item members, documents, versions
// and phase artefacts cascade at the store level.
func (q *Queries) DeletePhase(ctx context.Context, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM project_phases WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete phase: %w", err)
	}
	return requireAffected(res, "delete phase")
}
