package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreatePhase adds one phase to a project. Its order is the code ordinal
// and an empty name defaults to the code.
func (s *Service) CreatePhase(ctx context.Context, projectID uuid.UUID, code domain.PhaseCode, name string) (domain.Phase, error) {
	var out domain.Phase
	err := s.inTx(ctx, "CreatePhase", func(ctx context.Context, tx *store.Tx) error {
		ph, err := s.insertPhase(ctx, tx, projectID, code, name)
		out = ph
		return err
	})
	return out, err
}

func (s *Service) insertPhase(ctx context.Context, tx *store.Tx, projectID uuid.UUID, code domain.PhaseCode, name string) (domain.Phase, error) {
	if !code.Valid() {
		return domain.Phase{}, domain.Validationf("unknown phase code %q", code)
	}
	n := domain.NormalizeName(name)
	if n == "" {
		n = string(code)
	}
	p, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return domain.Phase{}, missing(err, "project %s", projectID)
	}

	ph := domain.Phase{
		ID:        s.ids.NewID(),
		ProjectID: projectID,
		Code:      code,
		State:     domain.PhaseNotStarted,
		Name:      n,
		Order:     code.Ordinal(),
	}
	if err := tx.InsertPhase(ctx, ph); err != nil {
		return domain.Phase{}, conflict(err, "project %q already has a %s phase", p.Identifier, code)
	}
	return ph, nil
}

// InitializePhases creates all four phases in order inside one transaction.
// If any phase already exists nothing is created.
func (s *Service) InitializePhases(ctx context.Context, projectID uuid.UUID) ([]domain.Phase, error) {
	var out []domain.Phase
	err := s.inTx(ctx, "InitializePhases", func(ctx context.Context, tx *store.Tx) error {
		phases := make([]domain.Phase, 0, len(domain.PhaseCodes))
		for _, code := range domain.PhaseCodes {
			ph, err := s.insertPhase(ctx, tx, projectID, code, "")
			if err != nil {
				return err
			}
			phases = append(phases, ph)
		}
		out = phases
		return nil
	})
	return out, err
}

// GetPhase returns a phase by id.
func (s *Service) GetPhase(ctx context.Context, id uuid.UUID) (domain.Phase, error) {
	return run(ctx, s, "GetPhase", func(ctx context.Context) (domain.Phase, error) {
		ph, err := s.store.GetPhase(ctx, id)
		return ph, missing(err, "phase %s", id)
	})
}

// GetPhaseByCode returns a project's phase with the given code.
func (s *Service) GetPhaseByCode(ctx context.Context, projectID uuid.UUID, code domain.PhaseCode) (domain.Phase, error) {
	return run(ctx, s, "GetPhaseByCode", func(ctx context.Context) (domain.Phase, error) {
		if !code.Valid() {
			return domain.Phase{}, domain.Validationf("unknown phase code %q", code)
		}
		ph, err := s.store.GetPhaseByCode(ctx, projectID, code)
		return ph, missing(err, "%s phase of project %s", code, projectID)
	})
}

// ListPhases returns a project's phases by order.
func (s *Service) ListPhases(ctx context.Context, projectID uuid.UUID) ([]domain.Phase, error) {
	return run(ctx, s, "ListPhases", func(ctx context.Context) ([]domain.Phase, error) {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return nil, missing(err, "project %s", projectID)
		}
		return s.store.ListPhases(ctx, projectID)
	})
}

// RenamePhase changes a phase's display name.
func (s *Service) RenamePhase(ctx context.Context, id uuid.UUID, name string) (domain.Phase, error) {
	var out domain.Phase
	err := s.inTx(ctx, "RenamePhase", func(ctx context.Context, tx *store.Tx) error {
		n, err := domain.RequireName("phase name", name)
		if err != nil {
			return err
		}
		ph, err := tx.GetPhase(ctx, id)
		if err != nil {
			return missing(err, "phase %s", id)
		}
		ph.Name = n
		if err := tx.UpdatePhase(ctx, ph); err != nil {
			return err
		}
		out = ph
		return nil
	})
	return out, err
}

// SetPhaseState moves a phase to state, subject to the transition policy.
func (s *Service) SetPhaseState(ctx context.Context, id uuid.UUID, state domain.PhaseState) (domain.Phase, error) {
	var out domain.Phase
	err := s.inTx(ctx, "SetPhaseState", func(ctx context.Context, tx *store.Tx) error {
		if !state.Valid() {
			return domain.Validationf("unknown phase state %q", state)
		}
		ph, err := tx.GetPhase(ctx, id)
		if err != nil {
			return missing(err, "phase %s", id)
		}
		if err := s.policy.CheckTransition(domain.EntityPhase, string(ph.State), string(state)); err != nil {
			return err
		}
		ph.State = state
		if err := tx.UpdatePhase(ctx, ph); err != nil {
			return err
		}
		out = ph
		return nil
	})
	return out, err
}

// DeletePhase removes a phase together with its items, their members,
// documents and versions, and the phase's artefact assignments.
func (s *Service) DeletePhase(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "DeletePhase", func(ctx context.Context) error {
		return missing(s.store.DeletePhase(ctx, id), "phase %s", id)
	})
}
