// sessionlock package provides support for application level distributed locks via advisory
// locks in PostgreSQL. rollcheck uses it to make sure only one check runs
// against a database at a time.
//
// - https://www.postgresql.org/docs/current/explicit-locking.html#ADVISORY-LOCKS
package sessionlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/crc32"
	"time"

	"go.uber.org/multierr"
)

// IDPrefix is prepended to any given lock name when computing the integer lock
// ID, to help prevent collisions with other clients that may be acquiring their
// own locks.
const IDPrefix string = "sessionlock-"

// SpinWait is the amount of time that sessionlock will sleep between attempts
// to acquire an in-use session lock with `pg_try_advisory_lock`.
const SpinWait time.Duration = 100 * time.Millisecond

// ID consistently hashes a string to unique integer that can be used with
// pg_advisory_lock() and pg_advisory_unlock().
func ID(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(IDPrefix + name))
}

// Lock is a held advisory lock. The connection that acquired it stays checked
// out of the pool until [Lock.Release] is called.
type Lock struct {
	name string
	conn *sql.Conn
}

// Name returns the name the lock was acquired with.
func (l *Lock) Name() string {
	return l.name
}

// Conn returns the connection holding the lock.
func (l *Lock) Conn() *sql.Conn {
	return l.conn
}

// Acquire opens a dedicated connection and spins on `pg_try_advisory_lock`
// until the lock is held or ctx expires.
//
// Spinning instead of calling `pg_advisory_lock` means that waiting for the
// lock never trips the `lock_timeout` or `statement_timeout` connection
// parameters.
func Acquire(ctx context.Context, db *sql.DB, lockName string) (*Lock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessionlock(%s) failed to open conn: %w", lockName, err)
	}
	query := fmt.Sprintf("SELECT pg_try_advisory_lock(%d)", ID(lockName))
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, query).Scan(&locked); err != nil {
			return nil, multierr.Append(err, closeConn(lockName, conn))
		}
		if locked {
			return &Lock{name: lockName, conn: conn}, nil
		}
		select {
		case <-ctx.Done():
			return nil, multierr.Append(ctx.Err(), closeConn(lockName, conn))
		case <-time.After(SpinWait):
		}
	}
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Both failures are reported.
func (l *Lock) Release(ctx context.Context) error {
	var final error
	query := fmt.Sprintf("SELECT pg_advisory_unlock(%d)", ID(l.name))
	if _, err := l.conn.ExecContext(ctx, query); err != nil {
		final = multierr.Append(final, fmt.Errorf("sessionlock(%s) failed to unlock: %w", l.name, err))
	}
	return multierr.Append(final, closeConn(l.name, l.conn))
}

func closeConn(lockName string, conn *sql.Conn) error {
	if err := conn.Close(); err != nil {
		return fmt.Errorf("sessionlock(%s) failed to close conn: %w", lockName, err)
	}
	return nil
}

// With acquires the lock, calls your `cb` with the connection holding it,
// then releases the lock.
func With(ctx context.Context, db *sql.DB, lockName string, cb func(*sql.Conn) error) (final error) {
	lock, err := Acquire(ctx, db, lockName)
	if err != nil {
		return err
	}
	defer func() {
		final = multierr.Append(final, lock.Release(ctx))
	}()
	return cb(lock.conn)
}
