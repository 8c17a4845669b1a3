// Package rollcheck verifies that database migrations can be rolled back.
//
// For every pending migration, rollcheck captures the schema, applies the
// migration, rolls it back, captures the schema again, and compares the two
// snapshots. The first migration whose rollback leaves a different schema
// behind stops the run and is reported with a colorized diff.
//
// Run it against a disposable test database. It applies every pending
// migration for real.
package rollcheck

import (
	"context"
	"database/sql"
)

// SQLOptions configure the checker built by [NewSQLChecker]. The zero value
// is usable.
type SQLOptions struct {
	// TableName defaults to [DefaultTableName].
	TableName string
	// Printer defaults to a colorized [DiffPrinter] writing to stdout.
	Printer Printer
	Logger  Logger
}

// NewSQLChecker wires a [Checker] to the built-in SQL collaborators: a
// [SQLEnvironment], a [SQLRunner] reading migrations from roots, [SQLStates]
// and a [TextComparer]. It returns [ErrNoRoots] if roots is empty.
func NewSQLChecker(db *sql.DB, dialect Dialect, opts SQLOptions, roots ...string) (*Checker, error) {
	runner, err := NewSQLRunner(db, dialect, roots...)
	if err != nil {
		return nil, err
	}
	env := NewSQLEnvironment(db, dialect)
	if opts.TableName != "" {
		runner.TableName = opts.TableName
		env.TableName = opts.TableName
	}
	runner.Logger = opts.Logger
	env.Logger = opts.Logger
	printer := opts.Printer
	if printer == nil {
		printer = DiffPrinter{}
	}
	checker, err := NewChecker(env, runner, SQLStates{DB: db, Dialect: dialect}, TextComparer{}, printer)
	if err != nil {
		return nil, err
	}
	checker.Logger = opts.Logger
	return checker, nil
}

// Check verifies every pending migration found in roots against db. See
// [Checker.Check].
func Check(ctx context.Context, db *sql.DB, dialect Dialect, roots []string, logger Logger) (Result, error) {
	checker, err := NewSQLChecker(db, dialect, SQLOptions{Logger: logger}, roots...)
	if err != nil {
		return Result{Phase: PhaseFailed}, err
	}
	return checker.Check(ctx)
}

// Status returns the status report for the migrations found in roots.
func Status(ctx context.Context, db *sql.DB, dialect Dialect, roots []string, logger Logger) (string, error) {
	runner, err := NewSQLRunner(db, dialect, roots...)
	if err != nil {
		return "", err
	}
	runner.Logger = logger
	return runner.Status(ctx)
}

// Dump returns the current schema snapshot of db.
func Dump(ctx context.Context, db *sql.DB, dialect Dialect) (string, error) {
	snapshot, err := SQLStates{DB: db, Dialect: dialect}.Capture(ctx)
	if err != nil {
		return "", err
	}
	return snapshot.String(), nil
}
