package domain

import "github.com/google/uuid"

// RolePermissionKey addresses a rol_permission row.
type RolePermissionKey struct {
	RoleID       uuid.UUID
	PermissionID uuid.UUID
}

// ProjectMemberKey addresses a project_users row.
type ProjectMemberKey struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
}

// ItemMemberKey addresses a phase_item_users row.
type ItemMemberKey struct {
	PhaseItemID uuid.UUID
	UserID      uuid.UUID
}

// PhaseArtefactKey addresses a phase_artefacts row.
type PhaseArtefactKey struct {
	PhaseID    uuid.UUID
	ArtefactID uuid.UUID
}

// VersionKey addresses a document_versions row by its natural key.
type VersionKey struct {
	DocumentID uuid.UUID
	Number     int
}
