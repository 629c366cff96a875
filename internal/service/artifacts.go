package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateArtifact registers an artifact in the legacy lineage. When PhaseID
// is set it must belong to the same project.
func (s *Service) CreateArtifact(ctx context.Context, in NewArtifact) (domain.Artifact, error) {
	var out domain.Artifact
	err := s.inTx(ctx, "CreateArtifact", func(ctx context.Context, tx *store.Tx) error {
		name, err := domain.RequireName("name", in.Name)
		if err != nil {
			return err
		}
		if _, err := tx.GetProject(ctx, in.ProjectID); err != nil {
			return missing(err, "project %s", in.ProjectID)
		}
		if in.PhaseID != nil {
			ph, err := tx.GetPhase(ctx, *in.PhaseID)
			if err != nil {
				return missing(err, "phase %s", *in.PhaseID)
			}
			if ph.ProjectID != in.ProjectID {
				return domain.Validationf("phase %s belongs to another project", ph.ID)
			}
		}
		a := domain.Artifact{
			ProjectID: in.ProjectID,
			PhaseID:   in.PhaseID,
			Name:      name,
			Mandatory: in.Mandatory,
			CreatedAt: s.now(),
		}
		if a.ID, err = tx.InsertArtifact(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// GetArtifact returns a legacy artifact by id.
func (s *Service) GetArtifact(ctx context.Context, id int64) (domain.Artifact, error) {
	return run(ctx, s, "GetArtifact", func(ctx context.Context) (domain.Artifact, error) {
		a, err := s.store.GetArtifact(ctx, id)
		return a, missing(err, "artifact %d", id)
	})
}

// ListArtifacts returns a project's legacy artifacts.
func (s *Service) ListArtifacts(ctx context.Context, projectID uuid.UUID) ([]domain.Artifact, error) {
	return run(ctx, s, "ListArtifacts", func(ctx context.Context) ([]domain.Artifact, error) {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return nil, missing(err, "project %s", projectID)
		}
		return s.store.ListArtifacts(ctx, projectID)
	})
}

// SetArtifactMandatory flips an artifact's mandatory flag.
func (s *Service) SetArtifactMandatory(ctx context.Context, id int64, mandatory bool) (domain.Artifact, error) {
	var out domain.Artifact
	err := s.inTx(ctx, "SetArtifactMandatory", func(ctx context.Context, tx *store.Tx) error {
		if err := tx.SetArtifactMandatory(ctx, id, mandatory, s.now()); err != nil {
			return missing(err, "artifact %d", id)
		}
		a, err := tx.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// DeleteArtifact removes a legacy artifact and its history.
func (s *Service) DeleteArtifact(ctx context.Context, id int64) error {
	return s.exec(ctx, "DeleteArtifact", func(ctx context.Context) error {
		return missing(s.store.DeleteArtifact(ctx, id), "artifact %d", id)
	})
}

// CreateArtifactVersion appends a version to a legacy artifact. The parent
// row is written first so that the max+1 read below happens under its lock.
func (s *Service) CreateArtifactVersion(ctx context.Context, artifactID int64, content []byte, createdBy uuid.UUID, notes string) (domain.ArtifactVersion, error) {
	var out domain.ArtifactVersion
	err := s.inTx(ctx, "CreateArtifactVersion", func(ctx context.Context, tx *store.Tx) error {
		now := s.now()
		if err := tx.TouchArtifact(ctx, artifactID, now); err != nil {
			return missing(err, "artifact %d", artifactID)
		}
		if _, err := tx.GetUser(ctx, createdBy); err != nil {
			return missing(err, "user %s", createdBy)
		}
		max, err := tx.MaxArtifactVersion(ctx, artifactID)
		if err != nil {
			return err
		}
		v := domain.ArtifactVersion{
			ArtifactID:    artifactID,
			VersionNumber: max + 1,
			Content:       content,
			Notes:         strings.TrimSpace(notes),
			CreatedBy:     createdBy,
			CreatedAt:     now,
		}
		if v.ID, err = tx.InsertArtifactVersion(ctx, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// GetLatestArtifactVersion returns the newest version of a legacy artifact.
func (s *Service) GetLatestArtifactVersion(ctx context.Context, artifactID int64) (domain.ArtifactVersion, error) {
	return run(ctx, s, "GetLatestArtifactVersion", func(ctx context.Context) (domain.ArtifactVersion, error) {
		if _, err := s.store.GetArtifact(ctx, artifactID); err != nil {
			return domain.ArtifactVersion{}, missing(err, "artifact %d", artifactID)
		}
		v, err := s.store.GetLatestArtifactVersion(ctx, artifactID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ArtifactVersion{}, &domain.Error{Kind: domain.KindNotFound, Message: "no versions yet", Err: err}
		}
		return v, err
	})
}

// GetArtifactVersion returns version n of a legacy artifact.
func (s *Service) GetArtifactVersion(ctx context.Context, artifactID int64, n int) (domain.ArtifactVersion, error) {
	return run(ctx, s, "GetArtifactVersion", func(ctx context.Context) (domain.ArtifactVersion, error) {
		v, err := s.store.GetArtifactVersion(ctx, artifactID, n)
		return v, missing(err, "version %d of artifact %d", n, artifactID)
	})
}

// ArtifactHistory returns a legacy artifact's versions, newest first.
func (s *Service) ArtifactHistory(ctx context.Context, artifactID int64) ([]domain.ArtifactVersion, error) {
	return run(ctx, s, "ArtifactHistory", func(ctx context.Context) ([]domain.ArtifactVersion, error) {
		if _, err := s.store.GetArtifact(ctx, artifactID); err != nil {
			return nil, missing(err, "artifact %d", artifactID)
		}
		return s.store.ListArtifactVersions(ctx, artifactID)
	})
}
