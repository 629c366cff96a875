// Package store provides relational storage for the phasetrack entity graph.
//
// Three drivers are supported behind one set of repository methods:
//   - sqlite: github.com/mattn/go-sqlite3 (default, cgo)
//   - sqlite-purego: modernc.org/sqlite (for CGO_ENABLED=0 builds)
//   - postgres: github.com/jackc/pgx/v5 through database/sql
//
// Queries are written once with '?' placeholders and rebound to '$n' for
// postgres.
//
// # Unit of work
//
// Store.InTx runs a function against a *Tx and commits once at the end; any
// error rolls the whole unit back. Repository methods are defined on
// *Queries, which both Store and Tx embed, so the same method works inside and
// outside a transaction.
//
// # Constraints
//
// The schema enforces uniqueness and foreign keys declaratively. Driver errors
// are classified into ErrUniqueViolation and ErrForeignKeyViolation so callers
// can tell a conflict from an outage without knowing the driver. Missing rows
// surface as ErrNotFound.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: a transaction holds the only writer, which
//     serializes read-increment-write sequences such as version numbering
package store
