package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	sqlite3 "github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Driver identifies a concrete storage backend.
type Driver string

const (
	DriverSQLite       Driver = "sqlite"        // mattn/go-sqlite3
	DriverSQLitePureGo Driver = "sqlite-purego" // modernc.org/sqlite
	DriverPostgres     Driver = "postgres"      // pgx via database/sql
)

// Drivers lists the supported drivers.
var Drivers = []Driver{DriverSQLite, DriverSQLitePureGo, DriverPostgres}

var (
	// ErrNotFound is returned when a row addressed by key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation is returned when a write collides with a unique key.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a write or delete breaks a
	// foreign key.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

type dialect struct {
	driver     Driver
	sqlDriver  string
	schema     string
	dollarArgs bool
}

func dialectFor(d Driver) (dialect, error) {
	switch d {
	case DriverSQLite, "":
		return dialect{driver: DriverSQLite, sqlDriver: "sqlite3", schema: schemaSQLite}, nil
	case DriverSQLitePureGo:
		return dialect{driver: DriverSQLitePureGo, sqlDriver: "sqlite", schema: schemaSQLite}, nil
	case DriverPostgres:
		return dialect{driver: DriverPostgres, sqlDriver: "pgx", schema: schemaPostgres, dollarArgs: true}, nil
	default:
		return dialect{}, fmt.Errorf("unknown storage driver %q", d)
	}
}

func (d dialect) isSQLite() bool { return d.driver != DriverPostgres }

// rebind rewrites '?' placeholders to '$1', '$2', ... for postgres.
func (d dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// classify maps driver constraint errors onto the package sentinels.
// Errors that are not constraint violations are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) && mattnErr.Code == sqlite3.ErrConstraint {
		switch mattnErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrForeignKeyViolation, err)
		}
		return err
	}

	var moderncErr *msqlite.Error
	if errors.As(err, &moderncErr) {
		switch moderncErr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", ErrForeignKeyViolation, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		case "23503":
			return fmt.Errorf("%w: %v", ErrForeignKeyViolation, err)
		}
	}
	return err
}
