package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateArtefact adds a deliverable type to the catalog.
func (s *Service) CreateArtefact(ctx context.Context, name, description string) (domain.Artefact, error) {
	return run(ctx, s, "CreateArtefact", func(ctx context.Context) (domain.Artefact, error) {
		n, err := domain.RequireName("artefact name", name)
		if err != nil {
			return domain.Artefact{}, err
		}
		a := domain.Artefact{ID: s.ids.NewID(), Name: n, Description: strings.TrimSpace(description)}
		if err := s.store.InsertArtefact(ctx, a); err != nil {
			return domain.Artefact{}, conflict(err, "artefact %q already exists", n)
		}
		return a, nil
	})
}

// GetArtefact returns a catalog artefact by id.
func (s *Service) GetArtefact(ctx context.Context, id uuid.UUID) (domain.Artefact, error) {
	return run(ctx, s, "GetArtefact", func(ctx context.Context) (domain.Artefact, error) {
		a, err := s.store.GetArtefact(ctx, id)
		return a, missing(err, "artefact %s", id)
	})
}

// GetArtefactByName returns a catalog artefact by name.
func (s *Service) GetArtefactByName(ctx context.Context, name string) (domain.Artefact, error) {
	return run(ctx, s, "GetArtefactByName", func(ctx context.Context) (domain.Artefact, error) {
		n := domain.NormalizeName(name)
		a, err := s.store.GetArtefactByName(ctx, n)
		return a, missing(err, "artefact %q", n)
	})
}

// ListArtefacts returns the whole catalog.
func (s *Service) ListArtefacts(ctx context.Context) ([]domain.Artefact, error) {
	return run(ctx, s, "ListArtefacts", func(ctx context.Context) ([]domain.Artefact, error) {
		return s.store.ListArtefacts(ctx)
	})
}

// DeleteArtefact removes a catalog entry and every phase assignment of it.
func (s *Service) DeleteArtefact(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "DeleteArtefact", func(ctx context.Context) error {
		return missing(s.store.DeleteArtefact(ctx, id), "artefact %s", id)
	})
}

// AssignArtefactToPhase records that a phase must produce an artefact.
// documentID is optional.
func (s *Service) AssignArtefactToPhase(ctx context.Context, phaseID, artefactID uuid.UUID, documentID *uuid.UUID, registered bool) (domain.PhaseArtefact, error) {
	var out domain.PhaseArtefact
	err := s.inTx(ctx, "AssignArtefactToPhase", func(ctx context.Context, tx *store.Tx) error {
		ph, err := tx.GetPhase(ctx, phaseID)
		if err != nil {
			return missing(err, "phase %s", phaseID)
		}
		a, err := tx.GetArtefact(ctx, artefactID)
		if err != nil {
			return missing(err, "artefact %s", artefactID)
		}
		if documentID != nil {
			if _, err := tx.GetDocument(ctx, *documentID); err != nil {
				return missing(err, "document %s", *documentID)
			}
		}
		pa := domain.PhaseArtefact{
			PhaseArtefactKey: domain.PhaseArtefactKey{PhaseID: phaseID, ArtefactID: artefactID},
			DocumentID:       documentID,
			Registered:       registered,
		}
		if err := tx.InsertPhaseArtefact(ctx, pa); err != nil {
			return conflict(err, "artefact %q is already assigned to phase %s", a.Name, ph.Code)
		}
		out = pa
		return nil
	})
	return out, err
}

// MarkAsRegistered flags an assigned artefact as registered, attaching
// documentID when given.
func (s *Service) MarkAsRegistered(ctx context.Context, phaseID, artefactID uuid.UUID, documentID *uuid.UUID) (domain.PhaseArtefact, error) {
	var out domain.PhaseArtefact
	err := s.inTx(ctx, "MarkAsRegistered", func(ctx context.Context, tx *store.Tx) error {
		key := domain.PhaseArtefactKey{PhaseID: phaseID, ArtefactID: artefactID}
		pa, err := tx.GetPhaseArtefact(ctx, key)
		if err != nil {
			return missing(err, "assignment of artefact %s to phase %s", artefactID, phaseID)
		}
		if documentID != nil {
			if _, err := tx.GetDocument(ctx, *documentID); err != nil {
				return missing(err, "document %s", *documentID)
			}
			pa.DocumentID = documentID
		}
		pa.Registered = true
		if err := tx.UpdatePhaseArtefact(ctx, pa); err != nil {
			return err
		}
		out = pa
		return nil
	})
	return out, err
}

// GetArtefactsByPhase returns the catalog entries assigned to a phase.
func (s *Service) GetArtefactsByPhase(ctx context.Context, phaseID uuid.UUID) ([]domain.Artefact, error) {
	return run(ctx, s, "GetArtefactsByPhase", func(ctx context.Context) ([]domain.Artefact, error) {
		if _, err := s.store.GetPhase(ctx, phaseID); err != nil {
			return nil, missing(err, "phase %s", phaseID)
		}
		return s.store.ListArtefactsByPhase(ctx, phaseID)
	})
}

// GetPhaseArtefacts returns a phase's assignments with their registration
// status and document.
func (s *Service) GetPhaseArtefacts(ctx context.Context, phaseID uuid.UUID) ([]domain.PhaseArtefact, error) {
	return run(ctx, s, "GetPhaseArtefacts", func(ctx context.Context) ([]domain.PhaseArtefact, error) {
		if _, err := s.store.GetPhase(ctx, phaseID); err != nil {
			return nil, missing(err, "phase %s", phaseID)
		}
		return s.store.ListPhaseArtefacts(ctx, phaseID)
	})
}

// RemoveArtefactFromPhase deletes an assignment. The catalog entry stays.
func (s *Service) RemoveArtefactFromPhase(ctx context.Context, phaseID, artefactID uuid.UUID) error {
	return s.exec(ctx, "RemoveArtefactFromPhase", func(ctx context.Context) error {
		err := s.store.DeletePhaseArtefact(ctx, domain.PhaseArtefactKey{PhaseID: phaseID, ArtefactID: artefactID})
		return missing(err, "assignment of artefact %s to phase %s", artefactID, phaseID)
	})
}

// PhaseCompleteness counts a phase's registered assignments and names the
// ones still missing.
func (s *Service) PhaseCompleteness(ctx context.Context, phaseID uuid.UUID) (Completeness, error) {
	return run(ctx, s, "PhaseCompleteness", func(ctx context.Context) (Completeness, error) {
		if _, err := s.store.GetPhase(ctx, phaseID); err != nil {
			return Completeness{}, missing(err, "phase %s", phaseID)
		}
		rows, err := s.store.ListPhaseArtefacts(ctx, phaseID)
		if err != nil {
			return Completeness{}, err
		}
		catalog, err := s.store.ListArtefactsByPhase(ctx, phaseID)
		if err != nil {
			return Completeness{}, err
		}
		names := make(map[uuid.UUID]string, len(catalog))
		for _, a := range catalog {
			names[a.ID] = a.Name
		}

		c := Completeness{PhaseID: phaseID, Total: len(rows), Missing: []string{}}
		for _, pa := range rows {
			if pa.Registered {
				c.Registered++
				continue
			}
			c.Missing = append(c.Missing, names[pa.ArtefactID])
		}
		return c, nil
	})
}
