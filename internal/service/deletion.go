package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/store"
)

// DeleteProject removes a project and everything under it in one
// transaction: members first, then each phase (whose items, documents,
// versions and artefact assignments cascade), then the project row. Any
// failure rolls the whole deletion back.
func (s *Service) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	return s.inTx(ctx, "DeleteProject", func(ctx context.Context, tx *store.Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return missing(err, "project %s", projectID)
		}
		log := s.logger.With("project", p.Identifier)

		members, err := tx.ListProjectMembers(ctx, projectID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.DeleteProjectMember(ctx, m.ProjectMemberKey); err != nil {
				return err
			}
		}
		log.Debug("removed project members", "count", len(members))

		phases, err := tx.ListPhases(ctx, projectID)
		if err != nil {
			return err
		}
		for _, ph := range phases {
			if err := tx.DeletePhase(ctx, ph.ID); err != nil {
				return restricted(err, "phase %s is still referenced", ph.Code)
			}
		}
		log.Debug("deleted phases", "count", len(phases))

		if err := tx.DeleteProject(ctx, projectID); err != nil {
			return restricted(err, "project %q is still referenced", p.Identifier)
		}
		log.Debug("deleted project")
		return nil
	})
}
