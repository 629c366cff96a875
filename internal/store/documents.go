package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

// InsertDocument inserts a document with LastVersionNumber taken from d
// (normally 0).
func (q *Queries) InsertDocument(ctx context.Context, d domain.Document) error {
	_, err := q.exec(ctx, `
		INSERT INTO documents (Id, PhaseItemId, Title, Description, CreatedBy, CreatedAt, LastVersionNumber)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.PhaseItemID, d.Title, nullString(d.Description), d.CreatedBy, formatTime(d.CreatedAt), d.LastVersionNumber)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `Id, PhaseItemId, Title, Description, CreatedBy, CreatedAt, LastVersionNumber`

func scanDocument(s scanner) (domain.Document, error) {
	var d domain.Document
	var desc sql.NullString
	var created string
	if err := s.Scan(&d.ID, &d.PhaseItemID, &d.Title, &desc, &d.CreatedBy, &created, &d.LastVersionNumber); err != nil {
		return domain.Document{}, err
	}
	d.Description = desc.String
	var err error
	if d.CreatedAt, err = parseTime(created); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// GetDocument retrieves a document by id.
func (q *Queries) GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	d, err := scanDocument(q.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE Id = ?`, id))
	if err != nil {
		return domain.Document{}, notFound(err, "get document")
	}
	return d, nil
}

// ListDocuments returns an item's documents by creation time.
func (q *Queries) ListDocuments(ctx context.Context, itemID uuid.UUID) ([]domain.Document, error) {
	rows, err := q.query(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE PhaseItemId = ? ORDER BY CreatedAt ASC, Id ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return collect(rows, "document", scanDocument)
}

// UpdateDocument overwrites title and description. The version counter is
// only changed by NextDocumentVersion.
func (q *Queries) UpdateDocument(ctx context.Context, d domain.Document) error {
	res, err := q.exec(ctx, `UPDATE documents SET Title = ?, Description = ? WHERE Id = ?`,
		d.Title, nullString(d.Description), d.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res, "update document")
}

// DeleteDocument deletes a document. Versions cascade; phase_artefacts rows
// pointing at it have DocumentId set to NULL.
func (q *Queries) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res, err := q.exec(ctx, `DELETE FROM documents WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, "delete document")
}

// NextDocumentVersion increments the document's LastVersionNumber and returns
// the new value. Inside a transaction the update takes the parent's write
// lock, so concurrent callers for the same document are serialized and each
// receives a distinct number.
func (q *Queries) NextDocumentVersion(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := q.queryRow(ctx, `
		UPDATE documents SET LastVersionNumber = LastVersionNumber + 1
		WHERE Id = ?
		RETURNING LastVersionNumber
	`, documentID).Scan(&n)
	if err != nil {
		return 0, notFound(err, "next document version")
	}
	return n, nil
}

// InsertDocumentVersion inserts a version row. A duplicate (document,
// number) returns ErrUniqueViolation.
func (q *Queries) InsertDocumentVersion(ctx context.Context, v domain.DocumentVersion) error {
	_, err := q.exec(ctx, `
		INSERT INTO document_versions
		(Id, DocumentId, CreatedBy, VersionNumber, CreatedAt, Observations, extension, binario)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.ID,
		v.DocumentID,
		v.CreatedBy,
		v.VersionNumber,
		formatTime(v.CreatedAt),
		nullString(v.Observations),
		nullString(v.Extension),
		v.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert document version: %w", err)
	}
	return nil
}

const versionColumns = `Id, DocumentId, CreatedBy, VersionNumber, CreatedAt, Observations, extension, binario`

func scanVersion(s scanner) (domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	var created string
	var obs, ext sql.NullString
	if err := s.Scan(&v.ID, &v.DocumentID, &v.CreatedBy, &v.VersionNumber, &created, &obs, &ext, &v.Payload); err != nil {
		return domain.DocumentVersion{}, err
	}
	v.Observations = obs.String
	v.Extension = ext.String
	var err error
	if v.CreatedAt, err = parseTime(created); err != nil {
		return domain.DocumentVersion{}, err
	}
	return v, nil
}

// GetDocumentVersion is a point lookup on (document, number).
func (q *Queries) GetDocumentVersion(ctx context.Context, k domain.VersionKey) (domain.DocumentVersion, error) {
	v, err := scanVersion(q.queryRow(ctx, `
		SELECT `+versionColumns+` FROM document_versions WHERE DocumentId = ? AND VersionNumber = ?
	`, k.DocumentID, k.Number))
	if err != nil {
		return domain.DocumentVersion{}, notFound(err, "get document version")
	}
	return v, nil
}

// GetLatestDocumentVersion returns the version with the highest number, or
// ErrNotFound when the document has none.
func (q *Queries) GetLatestDocumentVersion(ctx context.Context, documentID uuid.UUID) (domain.DocumentVersion, error) {
	v, err := scanVersion(q.queryRow(ctx, `
		SELECT `+versionColumns+` FROM document_versions
		WHERE DocumentId = ?
		ORDER BY VersionNumber DESC
		LIMIT 1
	`, documentID))
	if err != nil {
		return domain.DocumentVersion{}, notFound(err, "get latest document version")
	}
	return v, nil
}

// ListDocumentVersions returns a document's versions by ascending number.
func (q *Queries) ListDocumentVersions(ctx context.Context, documentID uuid.UUID) ([]domain.DocumentVersion, error) {
	rows, err := q.query(ctx, `
		SELECT `+versionColumns+` FROM document_versions
		WHERE DocumentId = ?
		ORDER BY VersionNumber ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query document versions: %w", err)
	}
	return collect(rows, "document version", scanVersion)
}

// MaxDocumentVersion returns the highest stored version number, 0 if none.
func (q *Queries) MaxDocumentVersion(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	if err := q.queryRow(ctx, `
		SELECT COALESCE(MAX(VersionNumber), 0) FROM document_versions WHERE DocumentId = ?
	`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("max document version: %w", err)
	}
	return n, nil
}

// UpdateVersionObservations rewrites the only mutable field of a version.
func (q *Queries) UpdateVersionObservations(ctx context.Context, k domain.VersionKey, observations string) error {
	res, err := q.exec(ctx, `
		UPDATE document_versions SET Observations = ? WHERE DocumentId = ? AND VersionNumber = ?
	`, nullString(observations), k.DocumentID, k.Number)
	if err != nil {
		return fmt.Errorf("update observations: %w", err)
	}
	return requireAffected(res, "update observations")
}
