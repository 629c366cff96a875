package service

import (
	"time"

	"github.com/google/uuid"
)

// NewProject is the input to CreateProject.
type NewProject struct {
	Identifier  string
	Name        string
	Description string
	StartDate   time.Time
	OwnerID     uuid.UUID
}

// ProjectDetails holds the editable project fields.
type ProjectDetails struct {
	Name        string
	Description string
	StartDate   time.Time
}

// NewItem is the input to CreateIteration and CreateMicroincrement.
// Number 0 selects the next free number in the item's numbering scope.
// PhaseID may be left zero for a microincrement to inherit its parent's.
type NewItem struct {
	PhaseID     uuid.UUID
	Name        string
	Number      int
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedBy   uuid.UUID
}

// ItemDetails holds the editable phase item fields.
type ItemDetails struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// NewVersion is the input to CreateVersion.
type NewVersion struct {
	DocumentID   uuid.UUID
	CreatedBy    uuid.UUID
	Observations string
	Extension    string
	Payload      []byte
}

// NewArtifact is the input to CreateArtifact.
type NewArtifact struct {
	ProjectID uuid.UUID
	PhaseID   *uuid.UUID
	Name      string
	Mandatory bool
}

// Completeness summarises artefact registration for one phase.
type Completeness struct {
	PhaseID    uuid.UUID
	Total      int
	Registered int
	Missing    []string
}

// Complete reports whether every assigned artefact is registered.
func (c Completeness) Complete() bool {
	return c.Registered == c.Total
}
