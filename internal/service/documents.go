package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/store"
)

// CreateDocument attaches a new, version-less document to a phase item.
func (s *Service) CreateDocument(ctx context.Context, itemID uuid.UUID, title, description string, createdBy uuid.UUID) (domain.Document, error) {
	var out domain.Document
	err := s.inTx(ctx, "CreateDocument", func(ctx context.Context, tx *store.Tx) error {
		t, err := domain.RequireName("title", title)
		if err != nil {
			return err
		}
		if _, err := tx.GetItem(ctx, itemID); err != nil {
			return missing(err, "phase item %s", itemID)
		}
		if _, err := tx.GetUser(ctx, createdBy); err != nil {
			return missing(err, "user %s", createdBy)
		}
		d := domain.Document{
			ID:          s.ids.NewID(),
			PhaseItemID: itemID,
			Title:       t,
			Description: strings.TrimSpace(description),
			CreatedBy:   createdBy,
			CreatedAt:   s.now(),
		}
		if err := tx.InsertDocument(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// GetDocument returns a document by id.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	return run(ctx, s, "GetDocument", func(ctx context.Context) (domain.Document, error) {
		d, err := s.store.GetDocument(ctx, id)
		return d, missing(err, "document %s", id)
	})
}

// ListDocuments returns the documents of a phase item.
func (s *Service) ListDocuments(ctx context.Context, itemID uuid.UUID) ([]domain.Document, error) {
	return run(ctx, s, "ListDocuments", func(ctx context.Context) ([]domain.Document, error) {
		if _, err := s.store.GetItem(ctx, itemID); err != nil {
			return nil, missing(err, "phase item %s", itemID)
		}
		return s.store.ListDocuments(ctx, itemID)
	})
}

// UpdateDocument edits a document's title and description.
func (s *Service) UpdateDocument(ctx context.Context, id uuid.UUID, title, description string) (domain.Document, error) {
	var out domain.Document
	err := s.inTx(ctx, "UpdateDocument", func(ctx context.Context, tx *store.Tx) error {
		t, err := domain.RequireName("title", title)
		if err != nil {
			return err
		}
		d, err := tx.GetDocument(ctx, id)
		if err != nil {
			return missing(err, "document %s", id)
		}
		d.Title = t
		d.Description = strings.TrimSpace(description)
		if err := tx.UpdateDocument(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// DeleteDocument removes a document and all its versions. Phase artefacts
// that pointed at it keep their registration flag and lose the link.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "DeleteDocument", func(ctx context.Context) error {
		return missing(s.store.DeleteDocument(ctx, id), "document %s", id)
	})
}

// CreateVersion appends a version to a document. The number is taken from
// the document's counter inside the same transaction as the insert, so
// concurrent callers get distinct, gap-free numbers.
func (s *Service) CreateVersion(ctx context.Context, in NewVersion) (domain.DocumentVersion, error) {
	var out domain.DocumentVersion
	err := s.inTx(ctx, "CreateVersion", func(ctx context.Context, tx *store.Tx) error {
		n, err := tx.NextDocumentVersion(ctx, in.DocumentID)
		if err != nil {
			return missing(err, "document %s", in.DocumentID)
		}
		if _, err := tx.GetUser(ctx, in.CreatedBy); err != nil {
			return missing(err, "user %s", in.CreatedBy)
		}
		v := domain.DocumentVersion{
			ID:            s.ids.NewID(),
			DocumentID:    in.DocumentID,
			VersionNumber: n,
			CreatedBy:     in.CreatedBy,
			CreatedAt:     s.now(),
			Observations:  strings.TrimSpace(in.Observations),
			Extension:     strings.TrimPrefix(strings.TrimSpace(in.Extension), "."),
			Payload:       in.Payload,
		}
		if err := tx.InsertDocumentVersion(ctx, v); err != nil {
			return err
		}
		s.logger.Debug("version created", "document", in.DocumentID, "version", n)
		out = v
		return nil
	})
	return out, err
}

// GetLatestVersion returns the highest-numbered version of a document.
func (s *Service) GetLatestVersion(ctx context.Context, documentID uuid.UUID) (domain.DocumentVersion, error) {
	return run(ctx, s, "GetLatestVersion", func(ctx context.Context) (domain.DocumentVersion, error) {
		if _, err := s.store.GetDocument(ctx, documentID); err != nil {
			return domain.DocumentVersion{}, missing(err, "document %s", documentID)
		}
		v, err := s.store.GetLatestDocumentVersion(ctx, documentID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.DocumentVersion{}, &domain.Error{Kind: domain.KindNotFound, Message: "no versions yet", Err: err}
		}
		return v, err
	})
}

// GetVersion returns version n of a document.
func (s *Service) GetVersion(ctx context.Context, documentID uuid.UUID, n int) (domain.DocumentVersion, error) {
	return run(ctx, s, "GetVersion", func(ctx context.Context) (domain.DocumentVersion, error) {
		v, err := s.store.GetDocumentVersion(ctx, domain.VersionKey{DocumentID: documentID, Number: n})
		return v, missing(err, "version %d of document %s", n, documentID)
	})
}

// ListVersions returns a document's versions in ascending order.
func (s *Service) ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVersion, error) {
	return run(ctx, s, "ListVersions", func(ctx context.Context) ([]domain.DocumentVersion, error) {
		if _, err := s.store.GetDocument(ctx, documentID); err != nil {
			return nil, missing(err, "document %s", documentID)
		}
		return s.store.ListDocumentVersions(ctx, documentID)
	})
}

// UpdateObservations rewrites a version's observations, the only field of
// a version that may change.
func (s *Service) UpdateObservations(ctx context.Context, key domain.VersionKey, observations string) (domain.DocumentVersion, error) {
	var out domain.DocumentVersion
	err := s.inTx(ctx, "UpdateObservations", func(ctx context.Context, tx *store.Tx) error {
		obs := strings.TrimSpace(observations)
		if err := tx.UpdateVersionObservations(ctx, key, obs); err != nil {
			return missing(err, "version %d of document %s", key.Number, key.DocumentID)
		}
		v, err := tx.GetDocumentVersion(ctx, key)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
