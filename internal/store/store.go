package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultBusyTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// Driver selects the backend. Empty means DriverSQLite.
	Driver Driver

	// DSN is a file path for the sqlite drivers and a connection string for
	// postgres.
	DSN string

	// BusyTimeout bounds how long sqlite waits for a lock. Zero means 5s.
	BusyTimeout time.Duration
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the repository methods. It runs against either the pool or
// an open transaction.
type Queries struct {
	q  querier
	da dialect
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.q.ExecContext(ctx, q.da.rebind(query), args...)
	return res, classify(err)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.da.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.da.rebind(query), args...)
}

// Store provides durable storage for the phasetrack entity graph.
type Store struct {
	*Queries
	db *sql.DB
	da dialect
}

// Tx is an open unit of work. Obtain one through Store.InTx.
type Tx struct {
	*Queries
}

// Open connects to the configured backend, applies pragmas (sqlite) and the
// schema, and runs pending migrations.
//
// This function is idempotent - safe to call multiple times against the
// same database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	da, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, errors.New("open store: empty DSN")
	}

	db, err := sql.Open(da.sqlDriver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if da.isSQLite() {
		// SQLite only supports one writer at a time. A single connection also
		// means an open transaction excludes every other caller.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		timeout := opts.BusyTimeout
		if timeout <= 0 {
			timeout = defaultBusyTimeout
		}
		if err := applyPragmas(ctx, db, timeout); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(ctx, db, da); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{Queries: &Queries{q: db, da: da}, db: db, da: da}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver reports the backend in use.
func (s *Store) Driver() Driver {
	return s.da.driver
}

// InTx runs fn inside a single transaction and commits once after fn
// returns. If fn returns an error, or the commit fails, every write made
// through tx is rolled back.
//
// fn must only use tx; touching the Store from inside fn deadlocks on sqlite
// because the transaction holds the only connection.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{Queries: &Queries{q: sqlTx, da: s.da}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
