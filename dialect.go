package rollcheck

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/peterldowns/rollcheck/internal/pgtools"
	"github.com/peterldowns/rollcheck/internal/schema"
	"github.com/peterldowns/rollcheck/internal/sessionlock"
)

// sessionLockPrefix is prefix used by rollcheck to help prevent conflicts
// between its lock and other users of Postgres advisory locks.
const sessionLockPrefix string = "rollcheck-"

// Executor is satisfied by *sql.DB as well as *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Unlocker releases an exclusive lock taken by [Dialect.Lock].
type Unlocker func(ctx context.Context) error

// Dialect is everything rollcheck needs to know about a database engine.
type Dialect interface {
	// Name is a short human-readable name, like "postgres".
	Name() string
	// Driver is the database/sql driver name used to open connections.
	Driver() string
	// Placeholder returns the bind parameter for the n'th (1-indexed)
	// argument of a query.
	Placeholder(n int) string
	// Table quotes a possibly schema-qualified table name.
	Table(name string) string
	// EnsureTrackingTable creates the tracking table if it does not exist.
	EnsureTrackingTable(ctx context.Context, db Executor, table string) error
	// HasTrackingTable reports whether the tracking table exists.
	HasTrackingTable(ctx context.Context, db Executor, table string) (bool, error)
	// Capture returns a deterministic text description of the schema.
	Capture(ctx context.Context, db *sql.DB) (string, error)
	// Lock takes an exclusive, database-wide lock named after the tracking
	// table. Engines without such locks return a no-op [Unlocker].
	Lock(ctx context.Context, db *sql.DB, table string) (Unlocker, error)
}

// Postgres returns the [Dialect] for PostgreSQL. Snapshots describe the given
// schemas, or "public" if none are given.
func Postgres(schemas ...string) Dialect {
	if len(schemas) == 0 {
		schemas = []string{schema.DefaultSchema}
	}
	return postgres{schemas: schemas}
}

type postgres struct {
	schemas []string
}

func (postgres) Name() string   { return "postgres" }
func (postgres) Driver() string { return "pgx" }

func (postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgres) Table(name string) string {
	return pgtools.Identifier(name)
}

func (d postgres) EnsureTrackingTable(ctx context.Context, db Executor, table string) error {
	if tableSchema, _ := pgtools.ParseTableName(table); tableSchema != "" {
		query := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgtools.Identifier(tableSchema))
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			batch INTEGER NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)
	`, d.Table(table))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (postgres) HasTrackingTable(ctx context.Context, db Executor, table string) (bool, error) {
	tableSchema, tableName := pgtools.ParseTableName(table)
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT FROM pg_tables
			WHERE tablename = %s AND schemaname = %s
		);
	`, pgtools.Literal(tableName), pgtools.Literal(tableSchema))
	var exists bool
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (d postgres) Capture(ctx context.Context, db *sql.DB) (string, error) {
	return schema.Postgres(ctx, db, schema.Config{Schemas: d.schemas})
}

func (postgres) Lock(ctx context.Context, db *sql.DB, table string) (Unlocker, error) {
	lock, err := sessionlock.Acquire(ctx, db, sessionLockPrefix+table)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// SQLite returns the [Dialect] for SQLite, backed by modernc.org/sqlite.
func SQLite() Dialect {
	return sqlite{}
}

type sqlite struct{}

func (sqlite) Name() string   { return "sqlite" }
func (sqlite) Driver() string { return "sqlite" }

func (sqlite) Placeholder(int) string {
	return "?"
}

// Table quotes the table name as a single identifier; sqlite has no schemas
// beyond attached databases, which rollcheck doesn't use.
func (sqlite) Table(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d sqlite) EnsureTrackingTable(ctx context.Context, db Executor, table string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			batch INTEGER NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`, d.Table(table))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (sqlite) HasTrackingTable(ctx context.Context, db Executor, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`,
		table,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (sqlite) Capture(ctx context.Context, db *sql.DB) (string, error) {
	return schema.SQLite(ctx, db)
}

func (sqlite) Lock(context.Context, *sql.DB, string) (Unlocker, error) {
	return func(context.Context) error { return nil }, nil
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string, schemas ...string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Postgres(schemas...), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}
