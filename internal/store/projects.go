package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertProject inserts a project. A duplicate identifier returns ErrUniqueViolation.
func (q *Queries) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := q.exec(ctx, `
		INSERT INTO projects (Id, Identifier, Name, Description, StartDate, OwnerId, State, CreatedAt, UpdatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Identifier,
		p.Name,
		nullString(p.Description),
		formatTime(p.StartDate),
		p.OwnerID,
		string(p.State),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

const projectColumns = `Id, Identifier, Name, Description, StartDate, OwnerId, State, CreatedAt, UpdatedAt`

func scanProject(s scanner) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	var state, start, created, updated string
	if err := s.Scan(&p.ID, &p.Identifier, &p.Name, &desc, &start, &p.OwnerID, &state, &created, &updated); err != nil {
		return domain.Project{}, err
	}
	p.Description = desc.String
	p.State = domain.ProjectState(state)
	var err error
	if p.StartDate, err = parseTime(start); err != nil {
		return domain.Project{}, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Project{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// GetProject retrieves a project by id.
func (q *Queries) GetProject(ctx context.Context, id uuid.UUID) (domain.Project, error) {
	p, err := scanProject(q.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE Id = ?`, id))
	if err != nil {
		return domain.Project{}, notFound(err, "get project")
	}
	return p, nil
}

// GetProjectByIdentifier retrieves a project by its business identifier.
func (q *Queries) GetProjectByIdentifier(ctx context.Context, identifier string) (domain.Project, error) {
	p, err := scanProject(q.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE Identifier = ?`, identifier))
	if err != nil {
		return domain.Project{}, notFound(err, "get project by identifier")
	}
	return p, nil
}

// ListProjects returns all projects ordered by identifier.
func (q *Queries) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := q.query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY Identifier ASC`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return collect(rows, "project", scanProject)
}

// UpdateProject overwrites the mutable project columns. Identifier and owner
// are immutable and not written.
func (q *Queries) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := q.exec(ctx, `
		UPDATE projects SET Name = ?, Description = ?, StartDate = ?, State = ?, UpdatedAt = ?
		WHERE Id = ?
	`, p.Name, nullString(p.Description), formatTime(p.StartDate), string(p.State), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(res, "update project")
}

// DeleteProject deletes the project row. Rows that still reference it
// cascade at the store level.
func (q *Queries) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM projects WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res, "delete project")
}

// InsertProjectMember inserts a project_users row.
func (q *Queries) InsertProjectMember(ctx context.Context, m domain.ProjectMember) error {
	_, err := q.exec(ctx, `
		INSERT INTO project_users (ProjectId, UserId, RoleId, AddedAt) VALUES (?, ?, ?, ?)
	`, m.ProjectID, m.UserID, m.RoleID, formatTime(m.AddedAt))
	if err != nil {
		return fmt.Errorf("insert project member: %w", err)
	}
	return nil
}

func scanProjectMember(s scanner) (domain.ProjectMember, error) {
	var m domain.ProjectMember
	var added string
	if err := s.Scan(&m.ProjectID, &m.UserID, &m.RoleID, &added); err != nil {
		return domain.ProjectMember{}, err
	}
	var err error
	if m.AddedAt, err = parseTime(added); err != nil {
		return domain.ProjectMember{}, err
	}
	return m, nil
}

// GetProjectMember retrieves a project_users row by key.
func (q *Queries) GetProjectMember(ctx context.Context, k domain.ProjectMemberKey) (domain.ProjectMember, error) {
	m, err := scanProjectMember(q.queryRow(ctx, `
		SELECT ProjectId, UserId, RoleId, AddedAt FROM project_users WHERE ProjectId = ? AND UserId = ?
	`, k.ProjectID, k.UserID))
	if err != nil {
		return domain.ProjectMember{}, notFound(err, "get project member")
	}
	return m, nil
}

// ListProjectMembers returns a project's members ordered by join time.
func (q *Queries) ListProjectMembers(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	rows, err := q.query(ctx, `
		SELECT ProjectId, UserId, RoleId, AddedAt FROM project_users
		WHERE ProjectId = ?
		ORDER BY AddedAt ASC, UserId ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project members: %w", err)
	}
	return collect(rows, "project member", scanProjectMember)
}

// DeleteProjectMember deletes a project_users row.
func (q *Queries) DeleteProjectMember(ctx context.Context, k domain.ProjectMemberKey) error {
	res, err := q.exec(ctx, `DELETE FROM project_users WHERE ProjectId = ? AND UserId = ?`, k.ProjectID, k.UserID)
	if err != nil {
		return fmt.Errorf("delete project member: %w", err)
	}
	return requireAffected(res, "delete project member")
}
