package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Schema version tracking:
// 1 - Initial schema
// 2 - Added UNIQUE index on phase item numbering (per phase for iterations,
//     per parent iteration for microincrements)
const currentSchemaVersion = 2

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 2,
		name:    "phase item numbering",
		stmts: []string{`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_phase_items_number
			ON phase_items(ProjectPhaseId, Type, COALESCE(ParentIterationId, ''), Number)
		`},
	},
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB, da dialect) error {
	for _, stmt := range splitStatements(da.schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if err := runMigrations(ctx, db, da); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations recorded in
// schema_migrations. Each migration runs in its own transaction.
func runMigrations(ctx context.Context, db *sql.DB, da dialect) error {
	var version int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(Version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	if version == 0 {
		if err := recordVersion(ctx, db, da, 1); err != nil {
			return err
		}
		version = 1
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(ctx, db, da, m); err != nil {
			return err
		}
		version = m.version
	}

	if version != currentSchemaVersion {
		return fmt.Errorf("schema version %d, expected %d", version, currentSchemaVersion)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, da dialect, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin tx: %w", m.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, da.rebind(`INSERT INTO schema_migrations (Version, AppliedAt) VALUES (?, ?)`),
		m.version, formatTime(time.Now())); err != nil {
		return fmt.Errorf("migrate to v%d: record version: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", m.version, err)
	}
	return nil
}

func recordVersion(ctx context.Context, db *sql.DB, da dialect, version int) error {
	_, err := db.ExecContext(ctx, da.rebind(`INSERT INTO schema_migrations (Version, AppliedAt) VALUES (?, ?)`),
		version, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(Version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

// splitStatements splits a DDL script on ';' and drops comment-only chunks.
// The scripts contain no string literals with semicolons.
func splitStatements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		if hasSQL(chunk) {
			out = append(out, strings.TrimSpace(chunk))
		}
	}
	return out
}

func hasSQL(chunk string) bool {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
