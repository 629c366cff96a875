package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns projects and authors items and versions.
// Users are never deleted by the core.
type User struct {
	ID                uuid.UUID
	Username          string
	PasswordHash      string
	CreatedAt         time.Time
	PasswordChangedAt *time.Time
}

// Role is a named bundle of permissions.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Permission is a named capability checked before protected actions.
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Project is the root of the process hierarchy.
type Project struct {
	ID          uuid.UUID
	Identifier  string
	Name        string
	Description string
	StartDate   time.Time
	OwnerID     uuid.UUID
	State       ProjectState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectMember is a ProjectUser row: a user's project-scoped role.
type ProjectMember struct {
	ProjectMemberKey
	RoleID  uuid.UUID
	AddedAt time.Time
}

// Phase is one of the four macro-stages of a project.
type Phase struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Code      PhaseCode
	State     PhaseState
	Name      string
	Order     int
}

// ItemMember is a PhaseItemUser row: a free-text role label on a work item.
type ItemMember struct {
	ItemMemberKey
	Role string
}

// Document belongs to a PhaseItem and owns an append-only list of versions.
type Document struct {
	ID                uuid.UUID
	PhaseItemID       uuid.UUID
	Title             string
	Description       string
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	LastVersionNumber int
}

// DocumentVersion is an immutable payload snapshot of a Document.
// Only Observations may change after creation.
type DocumentVersion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	VersionNumber int
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	Observations  string
	Extension     string
	Payload       []byte
}

// Key returns the (document, version number) composite key.
func (v DocumentVersion) Key() VersionKey {
	return VersionKey{DocumentID: v.DocumentID, Number: v.VersionNumber}
}

// Artefact is a catalog definition of a deliverable type.
type Artefact struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// PhaseArtefact records that a phase must (or does) produce an artefact.
type PhaseArtefact struct {
	PhaseArtefactKey
	DocumentID *uuid.UUID
	Registered bool
}

// Artifact is an entry of the legacy integer-keyed artifact lineage.
// It is a separate catalog from Artefact.
type Artifact struct {
	ID        int64
	ProjectID uuid.UUID
	PhaseID   *uuid.UUID
	Name      string
	Mandatory bool
	CreatedAt time.Time
}

// ArtifactVersion is a version of a legacy Artifact.
type ArtifactVersion struct {
	ID            int64
	ArtifactID    int64
	VersionNumber int
	Content       []byte
	Notes         string
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}
