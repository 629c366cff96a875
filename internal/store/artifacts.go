package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertArtifact inserts a legacy artifact and returns its generated id.
func (q *Queries) InsertArtifact(ctx context.Context, a domain.Artifact) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `
		INSERT INTO artifacts (ProjectId, PhaseId, Name, IsMandatory, CreatedAt, UpdatedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING Id
	`, a.ProjectID, nullUUID(a.PhaseID), a.Name, a.Mandatory, formatTime(a.CreatedAt), formatTime(a.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert artifact: %w", classify(err))
	}
	return id, nil
}

const artifactColumns = `Id, ProjectId, PhaseId, Name, IsMandatory, CreatedAt`

func scanArtifact(s scanner) (domain.Artifact, error) {
	var a domain.Artifact
	var phase uuid.NullUUID
	var created string
	if err := s.Scan(&a.ID, &a.ProjectID, &phase, &a.Name, &a.Mandatory, &created); err != nil {
		return domain.Artifact{}, err
	}
	a.PhaseID = uuidPtr(phase)
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Artifact{}, err
	}
	return a, nil
}

// GetArtifact retrieves a legacy artifact by id.
func (q *Queries) GetArtifact(ctx context.Context, id int64) (domain.Artifact, error) {
	a, err := scanArtifact(q.queryRow(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE Id = ?`, id))
	if err != nil {
		return domain.Artifact{}, notFound(err, "get artifact")
	}
	return a, nil
}

// ListArtifacts returns a project's legacy artifacts by id.
func (q *Queries) ListArtifacts(ctx context.Context, projectID uuid.UUID) ([]domain.Artifact, error) {
	rows, err := q.query(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE ProjectId = ? ORDER BY Id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	return collect(rows, "artifact", scanArtifact)
}

// SetArtifactMandatory flips the mandatory flag.
func (q *Queries) SetArtifactMandatory(ctx context.Context, id int64, mandatory bool, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE artifacts SET IsMandatory = ?, UpdatedAt = ? WHERE Id = ?`, mandatory, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("set artifact mandatory: %w", err)
	}
	return requireAffected(res, "set artifact mandatory")
}

// TouchArtifact bumps UpdatedAt. Inside a transaction this takes the
// parent's write lock before the version number is computed.
func (q *Queries) TouchArtifact(ctx context.Context, id int64, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE artifacts SET UpdatedAt = ? WHERE Id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch artifact: %w", err)
	}
	return requireAffected(res, "touch artifact")
}

// DeleteArtifact deletes a legacy artifact and its versions.
func (q *Queries) DeleteArtifact(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM artifacts WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return requireAffected(res, "delete artifact")
}

// MaxArtifactVersion returns the highest version number, 0 if none.
func (q *Queries) MaxArtifactVersion(ctx context.Context, artifactID int64) (int, error) {
	var n int
	if err := q.queryRow(ctx, `
		SELECT COALESCE(MAX(VersionNumber), 0) FROM artifact_versions WHERE ArtifactId = ?
	`, artifactID).Scan(&n); err != nil {
		return 0, fmt.Errorf("max artifact version: %w", err)
	}
	return n, nil
}

// InsertArtifactVersion inserts a version and returns its generated id.
func (q *Queries) InsertArtifactVersion(ctx context.Context, v domain.ArtifactVersion) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `
		INSERT INTO artifact_versions (ArtifactId, VersionNumber, Content, Notes, CreatedBy, CreatedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING Id
	`, v.ArtifactID, v.VersionNumber, v.Content, nullString(v.Notes), v.CreatedBy, formatTime(v.CreatedAt)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert artifact version: %w", classify(err))
	}
	return id, nil
}

const artifactVersionColumns = `Id, ArtifactId, VersionNumber, Content, Notes, CreatedBy, CreatedAt`

func scanArtifactVersion(s scanner) (domain.ArtifactVersion, error) {
	var v domain.ArtifactVersion
	var notes sql.NullString
	var created string
	if err := s.Scan(&v.ID, &v.ArtifactID, &v.VersionNumber, &v.Content, &notes, &v.CreatedBy, &created); err != nil {
		return domain.ArtifactVersion{}, err
	}
	v.Notes = notes.String
	var err error
	if v.CreatedAt, err = parseTime(created); err != nil {
		return domain.ArtifactVersion{}, err
	}
	return v, nil
}

// GetArtifactVersion is a point lookup on (artifact, number).
func (q *Queries) GetArtifactVersion(ctx context.Context, artifactID int64, number int) (domain.ArtifactVersion, error) {
	v, err := scanArtifactVersion(q.queryRow(ctx, `
		SELECT `+artifactVersionColumns+` FROM artifact_versions WHERE ArtifactId = ? AND VersionNumber = ?
	`, artifactID, number))
	if err != nil {
		return domain.ArtifactVersion{}, notFound(err, "get artifact version")
	}
	return v, nil
}

// GetLatestArtifactVersion returns the highest-numbered version.
func (q *Queries) GetLatestArtifactVersion(ctx context.Context, artifactID int64) (domain.ArtifactVersion, error) {
	v, err := scanArtifactVersion(q.queryRow(ctx, `
		SELECT `+artifactVersionColumns+` FROM artifact_versions
		WHERE ArtifactId = ?
		ORDER BY VersionNumber DESC
		LIMIT 1
	`, artifactID))
	if err != nil {
		return domain.ArtifactVersion{}, notFound(err, "get latest artifact version")
	}
	return v, nil
}

// ListArtifactVersions returns an artifact's history, newest first.
func (q *Queries) ListArtifactVersions(ctx context.Context, artifactID int64) ([]domain.ArtifactVersion, error) {
	rows, err := q.query(ctx, `
		SELECT `+artifactVersionColumns+` FROM artifact_versions
		WHERE ArtifactId = ?
		ORDER BY VersionNumber DESC
	`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("query artifact versions: %w", err)
	}
	return collect(rows, "artifact version", scanArtifactVersion)
}
