package rollcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Runner applies and rolls back migrations one at a time.
type Runner interface {
	// Pending returns the ids of migrations that have not been applied, in
	// the order they would be applied in.
	Pending(ctx context.Context) ([]string, error)
	// Up applies exactly the first pending migration. It fails with
	// [ErrNoPending] if nothing is pending.
	Up(ctx context.Context) error
	// Down rolls back exactly one step.
	Down(ctx context.Context) error
}

// StatusSource produces the raw status report consumed by [ParsePending].
type StatusSource interface {
	Status(ctx context.Context) (string, error)
}

// Phase is the state of a [Checker].
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePrepared  Phase = "prepared"
	PhaseIterating Phase = "iterating"
	PhaseCompleted Phase = "completed"
	PhaseDiverged  Phase = "diverged"
	PhaseFailed    Phase = "failed"
)

// Result is the outcome of [Checker.Check].
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	// Phase is one of [PhaseCompleted], [PhaseDiverged], or [PhaseFailed].
	Phase Phase
	// Checked lists every migration that round-tripped cleanly, in the
	// order they were checked.
	Checked []string
	// Diverged is the migration whose rollback did not restore the schema.
	// Empty unless Phase is [PhaseDiverged].
	Diverged string
}

// OK is true if every pending migration round-tripped.
func (r Result) OK() bool {
	return r.Phase == PhaseCompleted
}

// Checker verifies that every pending migration can be rolled back: applying
// it and then reverting it must leave the schema exactly as it was.
//
// A Checker runs one migration at a time and assumes it has the database to
// itself. It must not be used concurrently.
type Checker struct {
	Environment Environment
	Runner      Runner
	States      StateProvider
	Comparer    StateComparer
	Printer     Printer
	// Logger defaults to nil, which discards all messages.
	Logger Logger

	phase Phase
}

// NewChecker returns a [Checker] after making sure that every collaborator
// is present.
func NewChecker(
	env Environment,
	runner Runner,
	states StateProvider,
	comparer StateComparer,
	printer Printer,
) (*Checker, error) {
	switch {
	case env == nil:
		return nil, errors.New("checker requires an environment")
	case runner == nil:
		return nil, errors.New("checker requires a runner")
	case states == nil:
		return nil, errors.New("checker requires a state provider")
	case comparer == nil:
		return nil, errors.New("checker requires a state comparer")
	case printer == nil:
		return nil, errors.New("checker requires a printer")
	}
	return &Checker{
		Environment: env,
		Runner:      runner,
		States:      states,
		Comparer:    comparer,
		Printer:     printer,
		phase:       PhaseIdle,
	}, nil
}

// Phase returns the state the checker is in.
func (c *Checker) Phase() Phase {
	if c.phase == "" {
		return PhaseIdle
	}
	return c.phase
}

// Prepare makes sure the migration tracking store exists. It is safe to call
// more than once.
func (c *Checker) Prepare(ctx context.Context) error {
	if err := c.Environment.Prepare(ctx); err != nil {
		var envErr *EnvironmentError
		if !errors.As(err, &envErr) {
			err = &EnvironmentError{Op: "prepare", Err: err}
		}
		return err
	}
	c.phase = PhasePrepared
	return nil
}

// Check verifies pending migrations until none are left or one of them fails
// to round-trip. For each migration, in order:
//
//   - capture the schema
//   - apply the migration
//   - roll it back
//   - capture the schema again
//   - compare the two snapshots
//
// If the snapshots differ, the diff is printed and Check stops with
// [PhaseDiverged]; the remaining migrations are not checked. Divergence is
// reported through the [Result], not as an error. Otherwise the migration is
// applied again so that the next one can be checked on top of it.
//
// Any error from a collaborator aborts the run. Nothing is retried. CleanUp
// is always called exactly once, and its failure is only logged.
func (c *Checker) Check(ctx context.Context) (result Result, final error) {
	result = Result{RunID: uuid.NewString(), Phase: PhaseIdle}
	c.phase = PhaseIdle
	log := runLogger{logger: logger{c.Logger}, runID: result.RunID}

	defer func() {
		if err := c.Environment.CleanUp(context.WithoutCancel(ctx)); err != nil {
			log.warn(ctx, "cleanup failed", LogField{Key: "error", Value: err})
		}
		if final != nil {
			result.Phase = PhaseFailed
			c.phase = PhaseFailed
		}
	}()

	log.debug(ctx, "preparing environment")
	if err := c.Prepare(ctx); err != nil {
		log.error(ctx, err, "failed to prepare environment")
		return result, err
	}
	result.Phase = PhasePrepared

	var verified string
	for {
		pending, err := c.Runner.Pending(ctx)
		if err != nil {
			log.error(ctx, err, "failed to list pending migrations")
			return result, fmt.Errorf("pending: %w", err)
		}
		if len(pending) == 0 {
			log.info(ctx, "all migrations can be rolled back", LogField{Key: "checked", Value: len(result.Checked)})
			result.Phase = PhaseCompleted
			c.phase = PhaseCompleted
			return result, nil
		}
		id := pending[0]
		if id == verified {
			log.error(ctx, ErrNoProgress, "migration still pending", LogField{Key: "migration_id", Value: id})
			return result, fmt.Errorf("%s: %w", id, ErrNoProgress)
		}
		result.Phase = PhaseIterating
		c.phase = PhaseIterating

		log.info(ctx, "checking migration", LogField{Key: "migration_id", Value: id})
		equal, before, after, err := c.roundTrip(ctx, log, id)
		if err != nil {
			return result, err
		}
		if !equal {
			log.error(ctx, nil, "rollback did not restore the schema", LogField{Key: "migration_id", Value: id})
			result.Phase = PhaseDiverged
			result.Diverged = id
			c.phase = PhaseDiverged
			if err := c.Printer.DisplayDiff(before, after); err != nil {
				return result, fmt.Errorf("display diff: %w", err)
			}
			return result, nil
		}
		result.Checked = append(result.Checked, id)
		log.info(ctx, "migration can be rolled back", LogField{Key: "migration_id", Value: id})

		log.debug(ctx, "re-applying migration", LogField{Key: "migration_id", Value: id})
		if err := c.Runner.Up(ctx); err != nil {
			return result, &ExecutionError{Direction: DirectionUp, MigrationID: id, Err: err}
		}
		verified = id
	}
}

// roundTrip applies and rolls back one migration, returning the snapshots
// taken before and after.
func (c *Checker) roundTrip(ctx context.Context, log runLogger, id string) (bool, Snapshot, Snapshot, error) {
	field := LogField{Key: "migration_id", Value: id}
	log.debug(ctx, "capturing schema before up", field)
	before, err := c.States.Capture(ctx)
	if err != nil {
		log.error(ctx, err, "failed to capture schema", field)
		return false, nil, nil, fmt.Errorf("capture before %s: %w", id, err)
	}
	log.debug(ctx, "applying migration", field)
	if err := c.Runner.Up(ctx); err != nil {
		log.error(ctx, err, "failed to apply migration", field)
		return false, nil, nil, &ExecutionError{Direction: DirectionUp, MigrationID: id, Err: err}
	}
	log.debug(ctx, "rolling back migration", field)
	if err := c.Runner.Down(ctx); err != nil {
		log.error(ctx, err, "failed to roll back migration", field)
		return false, nil, nil, &ExecutionError{Direction: DirectionDown, MigrationID: id, Err: err}
	}
	log.debug(ctx, "capturing schema after down", field)
	after, err := c.States.Capture(ctx)
	if err != nil {
		log.error(ctx, err, "failed to capture schema", field)
		return false, nil, nil, fmt.Errorf("capture after %s: %w", id, err)
	}
	return c.Comparer.Equal(before, after), before, after, nil
}

// runLogger adds the run_id field to every message.
type runLogger struct {
	logger
	runID string
}

func (l runLogger) with(fields []LogField) []LogField {
	return append([]LogField{{Key: "run_id", Value: l.runID}}, fields...)
}

func (l runLogger) info(ctx context.Context, msg string, fields ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.logger.info(ctx, msg, l.with(fields)...)
}

func (l runLogger) debug(ctx context.Context, msg string, fields ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.logger.debug(ctx, msg, l.with(fields)...)
}

func (l runLogger) warn(ctx context.Context, msg string, fields ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.logger.warn(ctx, msg, l.with(fields)...)
}

// error logs at error level; err may be nil.
func (l runLogger) error(ctx context.Context, err error, msg string, fields ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	if err == nil {
		l.logger.log(ctx, LogLevelError, msg, l.with(fields)...)
		return
	}
	l.logger.error(ctx, err, msg, l.with(fields)...)
}
