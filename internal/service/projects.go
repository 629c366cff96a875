package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateProject creates a project in state Planned.
func (s *Service) CreateProject(ctx context.Context, in NewProject) (domain.Project, error) {
	var out domain.Project
	err := s.inTx(ctx, "CreateProject", func(ctx context.Context, tx *store.Tx) error {
		identifier, err := domain.RequireName("identifier", in.Identifier)
		if err != nil {
			return err
		}
		name, err := domain.RequireName("name", in.Name)
		if err != nil {
			return err
		}
		if in.StartDate.IsZero() {
			return domain.Validationf("start date is required")
		}
		if _, err := tx.GetUser(ctx, in.OwnerID); err != nil {
			return missing(err, "owner %s", in.OwnerID)
		}

		now := s.now()
		p := domain.Project{
			ID:          s.ids.NewID(),
			Identifier:  identifier,
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			StartDate:   in.StartDate.UTC(),
			OwnerID:     in.OwnerID,
			State:       domain.ProjectPlanned,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertProject(ctx, p); err != nil {
			return conflict(err, "project identifier %q already exists", identifier)
		}
		out = p
		return nil
	})
	return out, err
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (domain.Project, error) {
	return run(ctx, s, "GetProject", func(ctx context.Context) (domain.Project, error) {
		p, err := s.store.GetProject(ctx, id)
		return p, missing(err, "project %s", id)
	})
}

// GetProjectByIdentifier returns a project by its unique identifier.
func (s *Service) GetProjectByIdentifier(ctx context.Context, identifier string) (domain.Project, error) {
	return run(ctx, s, "GetProjectByIdentifier", func(ctx context.Context) (domain.Project, error) {
		id := domain.NormalizeName(identifier)
		p, err := s.store.GetProjectByIdentifier(ctx, id)
		return p, missing(err, "project %q", id)
	})
}

// ListProjects returns every project ordered by identifier.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return run(ctx, s, "ListProjects", func(ctx context.Context) ([]domain.Project, error) {
		return s.store.ListProjects(ctx)
	})
}

// UpdateProjectDetails edits name, description and start date. Owner and
// identifier cannot change.
func (s *Service) UpdateProjectDetails(ctx context.Context, id uuid.UUID, d ProjectDetails) (domain.Project, error) {
	var out domain.Project
	err := s.inTx(ctx, "UpdateProjectDetails", func(ctx context.Context, tx *store.Tx) error {
		name, err := domain.RequireName("name", d.Name)
		if err != nil {
			return err
		}
		if d.StartDate.IsZero() {
			return domain.Validationf("start date is required")
		}
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return missing(err, "project %s", id)
		}
		p.Name = name
		p.Description = strings.TrimSpace(d.Description)
		p.StartDate = d.StartDate.UTC()
		p.UpdatedAt = s.now()
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// SetProjectState moves a project to state, subject to the transition policy.
func (s *Service) SetProjectState(ctx context.Context, id uuid.UUID, state domain.ProjectState) (domain.Project, error) {
	var out domain.Project
	err := s.inTx(ctx, "SetProjectState", func(ctx context.Context, tx *store.Tx) error {
		if !state.Valid() {
			return domain.Validationf("unknown project state %q", state)
		}
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return missing(err, "project %s", id)
		}
		if err := s.policy.CheckTransition(domain.EntityProject, string(p.State), string(state)); err != nil {
			return err
		}
		p.State = state
		p.UpdatedAt = s.now()
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}
