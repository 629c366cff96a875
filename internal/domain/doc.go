// Package domain defines the phasetrack entity graph and the rules that do
// not depend on storage.
//
// The graph is:
//
//	Project ─┬─ Phase ─┬─ PhaseItem (Iteration) ─┬─ PhaseItem (Microincrement)
//	         │         │                         └─ Document ── DocumentVersion
//	         │         └─ PhaseArtefact ── Artefact (catalog)
//	         ├─ ProjectUser ── Role ── RolePermission ── Permission
//	         └─ Artifact ── ArtifactVersion (legacy lineage, int64 keys)
//
// Join tables are addressed by composite key value types (RolePermissionKey,
// ProjectMemberKey, ItemMemberKey, PhaseArtefactKey, VersionKey) rather than
// navigation pointers.
//
// # Invariants
//
//   - Usernames, project identifiers, role, permission and artefact names are unique.
//   - Every composite key is unique.
//   - A Microincrement's parent is an Iteration in the same phase; an
//     Iteration never has a parent (see ItemVariant).
//   - Document.LastVersionNumber equals the highest version number (0 if none).
//   - Deleting a Project leaves nothing referencing it.
package domain
