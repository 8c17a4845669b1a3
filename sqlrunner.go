package rollcheck

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"go.uber.org/multierr"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

// SQLRunner applies and rolls back plain-SQL migrations stored as
// "<id>.up.sql" / "<id>.down.sql" pairs, recording applied migrations in a
// tracking table. It is both a [Runner] and a [StatusSource].
type SQLRunner struct {
	DB      *sql.DB
	Dialect Dialect
	// TableName is the tracking table. [NewSQLRunner] defaults it to
	// [DefaultTableName].
	TableName string
	// Logger defaults to nil, which discards all messages.
	Logger Logger

	up   *Resolver
	down *Resolver
}

// NewSQLRunner returns a runner that looks for migration files in the given
// roots, in priority order. It returns [ErrNoRoots] if no root is given.
func NewSQLRunner(db *sql.DB, dialect Dialect, roots ...string) (*SQLRunner, error) {
	up, err := NewResolver(UpExt, roots...)
	if err != nil {
		return nil, err
	}
	down, err := NewResolver(DownExt, roots...)
	if err != nil {
		return nil, err
	}
	return &SQLRunner{
		DB:        db,
		Dialect:   dialect,
		TableName: DefaultTableName,
		up:        up,
		down:      down,
	}, nil
}

// Roots returns the migration roots in priority order.
func (r *SQLRunner) Roots() []string {
	return r.up.Roots()
}

// Applied returns the records of the tracking table ordered by batch, then id.
// If the tracking table does not exist this returns an empty list without an
// error.
func (r *SQLRunner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	exists, err := r.Dialect.HasTrackingTable(ctx, r.DB, r.TableName)
	if err != nil {
		return nil, fmt.Errorf("check migrations table: %w", err)
	}
	if !exists {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, checksum, batch, applied_at
		FROM %s ORDER BY batch, id ASC
	`, r.Dialect.Table(r.TableName))
	r.log().debug(ctx, query)
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanAppliedMigrations(rows)
}

// Status renders the status report: one line per migration that is either
// on disk or recorded as applied, in id order.
func (r *SQLRunner) Status(ctx context.Context) (string, error) {
	known, err := DiscoverIDs(r.up.Roots()...)
	if err != nil {
		return "", err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return "", err
	}
	batches := map[string]int{}
	ids := slices.Clone(known)
	for _, migration := range applied {
		batches[migration.ID] = migration.Batch
		if !slices.Contains(known, migration.ID) {
			ids = append(ids, migration.ID)
		}
	}
	SortIDs(ids)
	entries := make([]StatusEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, StatusEntry{ID: id, Batch: batches[id]})
	}
	return FormatStatus(entries), nil
}

// Pending returns the ids of the migrations that have not been applied, in
// the order they would be applied in.
func (r *SQLRunner) Pending(ctx context.Context) ([]string, error) {
	report, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	return ParsePending(report), nil
}

// CanUp reports whether there is a migration to apply.
func (r *SQLRunner) CanUp(ctx context.Context) (bool, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// Up applies exactly one migration, the first pending one, in a transaction:
// - BEGIN;
// - run the up SQL
// - insert a record marking the migration as applied, in a new batch
// - COMMIT;
//
// It returns [ErrNoPending] if there is nothing to apply.
func (r *SQLRunner) Up(ctx context.Context) error {
	pending, err := r.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return ErrNoPending
	}
	migration, err := ReadMigration(r.up.Resolve(pending[0]))
	if err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	batch := 1
	for _, a := range applied {
		if a.Batch >= batch {
			batch = a.Batch + 1
		}
	}
	startedAt := time.Now().UTC()
	fields := []LogField{
		{Key: "migration_id", Value: migration.ID},
		{Key: "migration_checksum", Value: migration.MD5()},
		{Key: "batch", Value: batch},
	}
	r.log().info(ctx, "applying migration", fields...)
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.exec(ctx, tx, migration, fields); err != nil {
			return err
		}
		query := fmt.Sprintf(`
			INSERT INTO %s
			( id, checksum, batch, applied_at )
			VALUES
			( %s, %s, %s, %s )`,
			r.Dialect.Table(r.TableName),
			r.Dialect.Placeholder(1),
			r.Dialect.Placeholder(2),
			r.Dialect.Placeholder(3),
			r.Dialect.Placeholder(4),
		)
		r.log().debug(ctx, query)
		if _, err := tx.ExecContext(ctx, query, migration.ID, migration.MD5(), batch, startedAt); err != nil {
			msg := "failed to mark migration as applied"
			r.log().error(ctx, err, msg, fields...)
			return fmt.Errorf("%s: %w", msg, err)
		}
		r.log().info(ctx, "marked as applied", fields...)
		return nil
	})
}

// Down rolls back one step: every migration of the most recent batch, newest
// id first, in a single transaction. It returns [ErrNothingApplied] if the
// tracking table is empty.
func (r *SQLRunner) Down(ctx context.Context) error {
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return ErrNothingApplied
	}
	last := applied[len(applied)-1].Batch
	var step []Migration
	for i := len(applied) - 1; i >= 0 && applied[i].Batch == last; i-- {
		migration, err := ReadMigration(r.down.Resolve(applied[i].ID))
		if err != nil {
			return err
		}
		step = append(step, migration)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, migration := range step {
			fields := []LogField{
				{Key: "migration_id", Value: migration.ID},
				{Key: "batch", Value: last},
			}
			r.log().info(ctx, "rolling back migration", fields...)
			if err := r.exec(ctx, tx, migration, fields); err != nil {
				return err
			}
			query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`,
				r.Dialect.Table(r.TableName),
				r.Dialect.Placeholder(1),
			)
			r.log().debug(ctx, query)
			if _, err := tx.ExecContext(ctx, query, migration.ID); err != nil {
				msg := "failed to unmark migration"
				r.log().error(ctx, err, msg, fields...)
				return fmt.Errorf("%s: %w", msg, err)
			}
		}
		return nil
	})
}

// exec runs the SQL of one migration file inside tx.
func (r *SQLRunner) exec(ctx context.Context, tx *sql.Tx, migration Migration, fields []LogField) error {
	startedAt := time.Now()
	_, err := tx.ExecContext(ctx, migration.SQL)
	fields = append(fields, LogField{Key: "execution_time_ms", Value: time.Since(startedAt).Milliseconds()})
	if err != nil {
		msg := "migration failed"
		for key, val := range pgtools.ErrorData(err) {
			fields = append(fields, LogField{Key: key, Value: val})
		}
		r.log().error(ctx, err, msg, fields...)
		return fmt.Errorf("%s: %w", msg, err)
	}
	r.log().info(ctx, "migration succeeded", fields...)
	return nil
}

func (r *SQLRunner) inTx(ctx context.Context, cb func(tx *sql.Tx) error) (final error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		msg := "tx open"
		r.log().error(ctx, err, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}
	defer func() {
		if final != nil {
			if err := tx.Rollback(); err != nil {
				final = multierr.Append(final, fmt.Errorf("tx rollback: %w", err))
			}
		} else {
			if err := tx.Commit(); err != nil {
				final = multierr.Append(final, fmt.Errorf("tx commit: %w", err))
			}
		}
	}()
	return cb(tx)
}

func (r *SQLRunner) log() logger {
	return logger{r.Logger}
}

func scanAppliedMigrations(rows *sql.Rows) ([]AppliedMigration, error) {
	defer rows.Close()
	var migrations []AppliedMigration
	for rows.Next() {
		migration := AppliedMigration{}
		err := rows.Scan(
			&migration.ID,
			&migration.Checksum,
			&migration.Batch,
			&migration.AppliedAt,
		)
		if err != nil {
			return nil, err
		}
		migration.AppliedAt = migration.AppliedAt.UTC()
		migrations = append(migrations, migration)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return migrations, nil
}
