package rollcheck_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/rollcheck"
)

// fakeMigration changes an in-memory schema, which is just a set of object
// names.
type fakeMigration struct {
	id      string
	up      []string // objects created by up
	down    []string // objects dropped by down
	upErr   error
	downErr error
}

// fakeDB is a Runner, Environment, and StateProvider all at once.
type fakeDB struct {
	migrations []fakeMigration
	applied    []string
	schema     map[string]bool
	calls      []string

	// stuck makes Up forget to record the migration as applied.
	stuck      bool
	prepareErr error
	cleanupErr error
	captureErr error
	cleanupCtx error
	cleanups   int
}

func newFakeDB(migrations ...fakeMigration) *fakeDB {
	return &fakeDB{migrations: migrations, schema: map[string]bool{}}
}

func (f *fakeDB) Prepare(ctx context.Context) error {
	f.calls = append(f.calls, "prepare")
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.prepareErr
}

func (f *fakeDB) CleanUp(ctx context.Context) error {
	f.calls = append(f.calls, "cleanup")
	f.cleanups++
	f.cleanupCtx = ctx.Err()
	return f.cleanupErr
}

func (f *fakeDB) Pending(_ context.Context) ([]string, error) {
	var pending []string
	for _, m := range f.migrations {
		if !slices.Contains(f.applied, m.id) {
			pending = append(pending, m.id)
		}
	}
	return pending, nil
}

func (f *fakeDB) find(id string) fakeMigration {
	for _, m := range f.migrations {
		if m.id == id {
			return m
		}
	}
	panic("unknown migration " + id)
}

func (f *fakeDB) Up(ctx context.Context) error {
	pending, _ := f.Pending(ctx)
	if len(pending) == 0 {
		return rollcheck.ErrNoPending
	}
	m := f.find(pending[0])
	f.calls = append(f.calls, "up:"+m.id)
	if m.upErr != nil {
		return m.upErr
	}
	for _, obj := range m.up {
		f.schema[obj] = true
	}
	if !f.stuck {
		f.applied = append(f.applied, m.id)
	}
	return nil
}

func (f *fakeDB) Down(_ context.Context) error {
	if len(f.applied) == 0 {
		return rollcheck.ErrNothingApplied
	}
	m := f.find(f.applied[len(f.applied)-1])
	f.calls = append(f.calls, "down:"+m.id)
	if m.downErr != nil {
		return m.downErr
	}
	for _, obj := range m.down {
		delete(f.schema, obj)
	}
	f.applied = f.applied[:len(f.applied)-1]
	return nil
}

func (f *fakeDB) Capture(_ context.Context) (rollcheck.Snapshot, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	var objects []string
	for obj := range f.schema {
		objects = append(objects, obj)
	}
	slices.Sort(objects)
	return rollcheck.TextSnapshot(strings.Join(objects, "\n")), nil
}

type diff struct {
	previous, current string
}

type recordingPrinter struct {
	diffs []diff
}

func (p *recordingPrinter) DisplayDiff(previous, current rollcheck.Snapshot) error {
	p.diffs = append(p.diffs, diff{previous.String(), current.String()})
	return nil
}

func newFakeChecker(t *testing.T, db *fakeDB) (*rollcheck.Checker, *recordingPrinter) {
	t.Helper()
	printer := &recordingPrinter{}
	checker, err := rollcheck.NewChecker(db, db, db, rollcheck.TextComparer{}, printer)
	assert.Nil(t, err)
	checker.Logger = rollcheck.NewTestLogger(t)
	return checker, printer
}

var ignoreRunID = cmpopts.IgnoreFields(rollcheck.Result{}, "RunID")

func reversible(id string, objects ...string) fakeMigration {
	return fakeMigration{id: id, up: objects, down: objects}
}

func TestCheckEveryMigrationReversible(t *testing.T) {
	t.Parallel()
	db := newFakeDB(
		reversible("0001_users", "table users"),
		reversible("0002_posts", "table posts"),
		reversible("0003_index", "index posts_author_idx"),
	)
	checker, printer := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	assert.Nil(t, err)

	check.Equal(t, "", cmp.Diff(rollcheck.Result{
		Phase:   rollcheck.PhaseCompleted,
		Checked: []string{"0001_users", "0002_posts", "0003_index"},
	}, result, ignoreRunID))
	check.True(t, result.OK())
	check.NotEqual(t, "", result.RunID)
	check.Equal(t, rollcheck.PhaseCompleted, checker.Phase())
	check.Equal(t, 0, len(printer.diffs))
	check.Equal(t, "", cmp.Diff([]string{
		"prepare",
		"up:0001_users", "down:0001_users", "up:0001_users",
		"up:0002_posts", "down:0002_posts", "up:0002_posts",
		"up:0003_index", "down:0003_index", "up:0003_index",
		"cleanup",
	}, db.calls))
	// Every migration ends up applied.
	check.Equal(t, []string{"0001_users", "0002_posts", "0003_index"}, db.applied)
}

func TestCheckStopsAtFirstDivergence(t *testing.T) {
	t.Parallel()
	db := newFakeDB(
		reversible("0001_users", "table users"),
		fakeMigration{id: "0002_name", up: []string{"column users.name"}},
		reversible("0003_posts", "table posts"),
	)
	checker, printer := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	assert.Nil(t, err)

	check.Equal(t, "", cmp.Diff(rollcheck.Result{
		Phase:    rollcheck.PhaseDiverged,
		Checked:  []string{"0001_users"},
		Diverged: "0002_name",
	}, result, ignoreRunID))
	check.True(t, !result.OK())
	check.Equal(t, rollcheck.PhaseDiverged, checker.Phase())
	check.Equal(t, "", cmp.Diff([]diff{{
		previous: "table users",
		current:  "column users.name\ntable users",
	}}, printer.diffs, cmp.AllowUnexported(diff{})))
	// The third migration is never touched.
	check.True(t, !slices.Contains(db.calls, "up:0003_posts"))
	check.Equal(t, 1, db.cleanups)
}

func TestCheckNothingPending(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	checker, _ := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	assert.Nil(t, err)
	check.Equal(t, rollcheck.PhaseCompleted, result.Phase)
	check.Equal(t, 0, len(result.Checked))
	check.Equal(t, []string{"prepare", "cleanup"}, db.calls)
}

func TestCheckUpFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("syntax error at or near \"CREAT\"")
	db := newFakeDB(
		reversible("0001_users", "table users"),
		fakeMigration{id: "0002_broken", upErr: boom},
	)
	checker, printer := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	assert.True(t, err != nil)
	check.True(t, errors.Is(err, boom))

	var execErr *rollcheck.ExecutionError
	assert.True(t, errors.As(err, &execErr))
	check.Equal(t, rollcheck.DirectionUp, execErr.Direction)
	check.Equal(t, "0002_broken", execErr.MigrationID)

	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	check.Equal(t, rollcheck.PhaseFailed, checker.Phase())
	check.Equal(t, []string{"0001_users"}, result.Checked)
	check.Equal(t, 0, len(printer.diffs))
	check.Equal(t, 1, db.cleanups)
}

func TestCheckDownFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("table \"users\" does not exist")
	db := newFakeDB(fakeMigration{id: "0001_users", up: []string{"table users"}, downErr: boom})
	checker, _ := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())

	var execErr *rollcheck.ExecutionError
	assert.True(t, errors.As(err, &execErr))
	check.Equal(t, rollcheck.DirectionDown, execErr.Direction)
	check.Equal(t, "0001_users", execErr.MigrationID)
	check.True(t, errors.Is(err, boom))
	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	check.Equal(t, 1, db.cleanups)
}

func TestCheckPrepareFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("permission denied for schema public")
	db := newFakeDB(reversible("0001_users", "table users"))
	db.prepareErr = boom
	checker, _ := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())

	var envErr *rollcheck.EnvironmentError
	assert.True(t, errors.As(err, &envErr))
	check.Equal(t, "prepare", envErr.Op)
	check.True(t, errors.Is(err, boom))
	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	// Nothing was applied, but cleanup still ran.
	check.Equal(t, []string{"prepare", "cleanup"}, db.calls)
}

func TestCheckCaptureFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset by peer")
	db := newFakeDB(reversible("0001_users", "table users"))
	db.captureErr = boom
	checker, _ := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	check.True(t, errors.Is(err, boom))
	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	check.Equal(t, 1, db.cleanups)
}

func TestCheckCleanupFailureIsNotAnError(t *testing.T) {
	t.Parallel()
	db := newFakeDB(reversible("0001_users", "table users"))
	db.cleanupErr = errors.New("could not release lock")
	checker, _ := newFakeChecker(t, db)
	result, err := checker.Check(context.Background())
	check.Nil(t, err)
	check.Equal(t, rollcheck.PhaseCompleted, result.Phase)
	check.Equal(t, 1, db.cleanups)
}

func TestCheckCleansUpAfterCancellation(t *testing.T) {
	t.Parallel()
	db := newFakeDB(reversible("0001_users", "table users"))
	checker, _ := newFakeChecker(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := checker.Check(ctx)
	check.True(t, errors.Is(err, context.Canceled))
	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	check.Equal(t, 1, db.cleanups)
	check.Nil(t, db.cleanupCtx)
}

func TestCheckFailsWhenUpDoesNotAdvance(t *testing.T) {
	t.Parallel()
	db := newFakeDB(fakeMigration{id: "0001_users", up: []string{"table users"}, down: []string{"table users"}})
	db.stuck = true
	checker, _ := newFakeChecker(t, db)
	checker.Runner = stuckRunner{db}
	result, err := checker.Check(context.Background())
	check.True(t, errors.Is(err, rollcheck.ErrNoProgress))
	check.True(t, strings.HasPrefix(err.Error(), "0001_users: "))
	check.Equal(t, []string{"0001_users"}, result.Checked)
	check.Equal(t, rollcheck.PhaseFailed, result.Phase)
	check.Equal(t, 1, db.cleanups)
}

// stuckRunner rolls back the schema without consulting the applied list,
// which the stuck fake never fills in.
type stuckRunner struct {
	*fakeDB
}

func (r stuckRunner) Down(_ context.Context) error {
	r.calls = append(r.calls, "down")
	for _, obj := range r.migrations[0].down {
		delete(r.schema, obj)
	}
	return nil
}

func TestCheckIsRepeatable(t *testing.T) {
	t.Parallel()
	db := newFakeDB(reversible("0001_users", "table users"))
	checker, _ := newFakeChecker(t, db)
	first, err := checker.Check(context.Background())
	assert.Nil(t, err)
	second, err := checker.Check(context.Background())
	assert.Nil(t, err)
	check.NotEqual(t, first.RunID, second.RunID)
	check.Equal(t, 0, len(second.Checked))
	check.Equal(t, 2, db.cleanups)
}

func TestNewCheckerRequiresCollaborators(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	printer := &recordingPrinter{}
	comparer := rollcheck.TextComparer{}
	for _, tc := range []struct {
		name    string
		build   func() (*rollcheck.Checker, error)
		message string
	}{
		{"environment", func() (*rollcheck.Checker, error) {
			return rollcheck.NewChecker(nil, db, db, comparer, printer)
		}, "checker requires an environment"},
		{"runner", func() (*rollcheck.Checker, error) {
			return rollcheck.NewChecker(db, nil, db, comparer, printer)
		}, "checker requires a runner"},
		{"states", func() (*rollcheck.Checker, error) {
			return rollcheck.NewChecker(db, db, nil, comparer, printer)
		}, "checker requires a state provider"},
		{"comparer", func() (*rollcheck.Checker, error) {
			return rollcheck.NewChecker(db, db, db, nil, printer)
		}, "checker requires a state comparer"},
		{"printer", func() (*rollcheck.Checker, error) {
			return rollcheck.NewChecker(db, db, db, comparer, nil)
		}, "checker requires a printer"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checker, err := tc.build()
			check.True(t, checker == nil)
			assert.True(t, err != nil)
			check.Equal(t, tc.message, err.Error())
		})
	}

	checker, err := rollcheck.NewChecker(db, db, db, comparer, printer)
	assert.Nil(t, err)
	check.Equal(t, rollcheck.PhaseIdle, checker.Phase())
}

func TestCheckerPrepareIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	checker, _ := newFakeChecker(t, db)
	assert.Nil(t, checker.Prepare(context.Background()))
	assert.Nil(t, checker.Prepare(context.Background()))
	check.Equal(t, rollcheck.PhasePrepared, checker.Phase())
	check.Equal(t, []string{"prepare", "prepare"}, db.calls)
}
