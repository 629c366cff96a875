// Package service implements the phasetrack core operations on top of the
// relational store.
//
// Every exported operation passes through one boundary (see run) that:
//   - converts store errors into *domain.Error kinds (ErrNotFound to
//     NotFound, unique violations to Conflict, foreign-key violations to
//     Restricted, anything else to StoreFailure);
//   - logs storage failures at error level with the operation name;
//   - records the outcome and duration in Metrics when configured.
//
// Multi-row writes run inside a single store transaction, so a failure
// leaves no partial state behind. The operations fall into five groups:
// identity and RBAC, the process hierarchy, versioning (document and
// legacy artifact lineages), artefact registration, and project deletion.
package service
