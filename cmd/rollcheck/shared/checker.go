package shared

import (
	"database/sql"
	"io"
	"os"

	"github.com/peterldowns/rollcheck"
)

// UsesCommands is true when the config file delegates migrating to an
// external tool.
func (state StateT) UsesCommands() bool {
	c := state.Config.Commands
	return c.Status != "" || c.Up != "" || c.Down != ""
}

// Checker builds a checker for the configured roots. Snapshots always come
// from db, even when an external tool runs the migrations.
func (state StateT) Checker(db *sql.DB, dialect rollcheck.Dialect, logger rollcheck.Logger, out io.Writer) (*rollcheck.Checker, error) {
	roots := SplitPaths(state.Migrations().Value())
	printer := rollcheck.DiffPrinter{Out: out, NoColor: state.NoColor().Value()}
	if !state.UsesCommands() {
		return rollcheck.NewSQLChecker(db, dialect, rollcheck.SQLOptions{
			TableName: state.TableName().Value(),
			Printer:   printer,
			Logger:    logger,
		}, roots...)
	}
	runner, err := state.commandRunner(logger, roots)
	if err != nil {
		return nil, err
	}
	env := &rollcheck.CommandEnvironment{
		Commands: state.Config.Commands,
		Out:      os.Stderr,
		Logger:   logger,
	}
	checker, err := rollcheck.NewChecker(env, runner, rollcheck.SQLStates{DB: db, Dialect: dialect}, rollcheck.TextComparer{}, printer)
	if err != nil {
		return nil, err
	}
	checker.Logger = logger
	return checker, nil
}

// StatusSource returns whatever produces the status report: the external
// status command if there is one, the tracking table otherwise.
func (state StateT) StatusSource(db *sql.DB, dialect rollcheck.Dialect, logger rollcheck.Logger) (rollcheck.StatusSource, error) {
	roots := SplitPaths(state.Migrations().Value())
	if state.UsesCommands() {
		runner, err := state.commandRunner(logger, roots)
		if err != nil {
			return nil, err
		}
		return runner, nil
	}
	runner, err := rollcheck.NewSQLRunner(db, dialect, roots...)
	if err != nil {
		return nil, err
	}
	runner.TableName = state.TableName().Value()
	runner.Logger = logger
	return runner, nil
}

func (state StateT) commandRunner(logger rollcheck.Logger, roots []string) (*rollcheck.CommandRunner, error) {
	runner, err := rollcheck.NewCommandRunner(state.Config.Commands, roots...)
	if err != nil {
		return nil, err
	}
	runner.Out = os.Stderr
	runner.Logger = logger
	return runner, nil
}
