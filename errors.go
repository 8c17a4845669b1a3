package rollcheck

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoots is returned when no candidate migration roots are
	// configured. It is raised before any database interaction.
	ErrNoRoots = errors.New("at least one migration root is required")

	// ErrNoPending is returned by a runner asked to apply a migration when
	// nothing is pending.
	ErrNoPending = errors.New("no pending migrations to apply")

	// ErrNothingApplied is returned by a runner asked to roll back when no
	// migration has been applied.
	ErrNothingApplied = errors.New("no applied migrations to roll back")

	// ErrNoProgress is returned by the [Checker] when re-applying a verified
	// migration did not remove it from the pending list.
	ErrNoProgress = errors.New("migration is still pending after it was applied")
)

// EnvironmentError wraps a failure to prepare (or clean up) the migration
// tracking store.
type EnvironmentError struct {
	Op  string // "prepare" or "cleanup"
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment %s: %s", e.Op, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// Direction is the direction in which a migration is executed.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ExecutionError wraps a failure of the runner to apply or roll back a
// migration. Execution errors are never retried.
type ExecutionError struct {
	Direction   Direction
	MigrationID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Direction, e.MigrationID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
