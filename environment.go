package rollcheck

import (
	"context"
	"database/sql"
	"sync"
)

// DefaultTableName is the default name of the table that rollcheck uses to
// store a record of applied migrations.
const DefaultTableName string = "rollcheck_migrations"

// Environment prepares the database for a check and releases whatever it
// acquired afterwards.
type Environment interface {
	// Prepare makes sure the migration tracking store exists. It is safe to
	// call more than once.
	Prepare(ctx context.Context) error
	// CleanUp releases any resources held since Prepare. It may be a no-op.
	CleanUp(ctx context.Context) error
}

// SQLEnvironment is the [Environment] for the built-in [SQLRunner]. Prepare
// takes the dialect's exclusive lock and creates the tracking table; CleanUp
// releases the lock.
type SQLEnvironment struct {
	DB        *sql.DB
	Dialect   Dialect
	TableName string
	Logger    Logger

	mu     sync.Mutex
	unlock Unlocker
}

// NewSQLEnvironment returns a [SQLEnvironment] using [DefaultTableName].
func NewSQLEnvironment(db *sql.DB, dialect Dialect) *SQLEnvironment {
	return &SQLEnvironment{DB: db, Dialect: dialect, TableName: DefaultTableName}
}

func (e *SQLEnvironment) Prepare(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	log := logger{e.Logger}
	if e.unlock == nil {
		unlock, err := e.Dialect.Lock(ctx, e.DB, e.TableName)
		if err != nil {
			log.error(ctx, err, "failed to acquire lock")
			return &EnvironmentError{Op: "prepare", Err: err}
		}
		e.unlock = unlock
		log.debug(ctx, "acquired lock", LogField{Key: "table_name", Value: e.TableName})
	}
	log.info(ctx, "ensuring migrations table exists", LogField{Key: "table_name", Value: e.TableName})
	if err := e.Dialect.EnsureTrackingTable(ctx, e.DB, e.TableName); err != nil {
		log.error(ctx, err, "failed to create migrations table", LogField{Key: "table_name", Value: e.TableName})
		return &EnvironmentError{Op: "prepare", Err: err}
	}
	return nil
}

func (e *SQLEnvironment) CleanUp(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unlock == nil {
		return nil
	}
	unlock := e.unlock
	e.unlock = nil
	if err := unlock(ctx); err != nil {
		return &EnvironmentError{Op: "cleanup", Err: err}
	}
	logger{e.Logger}.debug(ctx, "released lock", LogField{Key: "table_name", Value: e.TableName})
	return nil
}
