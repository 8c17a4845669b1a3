package rollcheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Commands are the shell commands used to drive a migration tool that
// rollcheck doesn't know how to run itself, like `php artisan migrate`.
type Commands struct {
	// Prepare is run by [CommandEnvironment.Prepare]. Optional.
	Prepare string `yaml:"prepare"`
	// Status must print a status report that [ParsePending] understands.
	Status string `yaml:"status"`
	// Up applies the next pending migration. Any "%s" is replaced by the
	// shell-quoted path of that migration's file.
	Up string `yaml:"up"`
	// Down rolls back exactly one step.
	Down string `yaml:"down"`
	// CleanUp is run by [CommandEnvironment.CleanUp]. Optional.
	CleanUp string `yaml:"cleanup"`
	// Ext is the extension of migration files, used to resolve the path
	// substituted into Up. Defaults to ".sql".
	Ext string `yaml:"ext"`
}

// Shell is the interpreter used to run every command.
var Shell = []string{"sh", "-c"}

// CommandRunner is a [Runner] and [StatusSource] that shells out to an
// external migration tool.
type CommandRunner struct {
	Commands Commands
	Resolver *Resolver
	// Dir is the working directory of every command. Defaults to the
	// current directory.
	Dir string
	// Out receives the combined output of up and down commands. Optional.
	Out    io.Writer
	Logger Logger
}

// NewCommandRunner returns a runner that resolves migration files in the
// given roots. It returns [ErrNoRoots] if no root is given.
func NewCommandRunner(commands Commands, roots ...string) (*CommandRunner, error) {
	ext := commands.Ext
	if ext == "" {
		ext = ".sql"
	}
	resolver, err := NewResolver(ext, roots...)
	if err != nil {
		return nil, err
	}
	for name, command := range map[string]string{"status": commands.Status, "up": commands.Up, "down": commands.Down} {
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("missing %s command", name)
		}
	}
	return &CommandRunner{Commands: commands, Resolver: resolver}, nil
}

func (r *CommandRunner) Status(ctx context.Context) (string, error) {
	return run(ctx, r.Dir, nil, logger{r.Logger}, r.Commands.Status)
}

func (r *CommandRunner) Pending(ctx context.Context) ([]string, error) {
	report, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	return ParsePending(report), nil
}

func (r *CommandRunner) CanUp(ctx context.Context) (bool, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// Up runs the up command for the first pending migration. It returns
// [ErrNoPending] if there is nothing to apply.
func (r *CommandRunner) Up(ctx context.Context) error {
	pending, err := r.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return ErrNoPending
	}
	command := r.Commands.Up
	if strings.Contains(command, "%s") {
		command = strings.ReplaceAll(command, "%s", ShellQuote(r.Resolver.Resolve(pending[0])))
	}
	_, err = run(ctx, r.Dir, r.Out, logger{r.Logger}, command)
	return err
}

func (r *CommandRunner) Down(ctx context.Context) error {
	_, err := run(ctx, r.Dir, r.Out, logger{r.Logger}, r.Commands.Down)
	return err
}

// CommandEnvironment is an [Environment] that runs the optional prepare and
// cleanup commands.
type CommandEnvironment struct {
	Commands Commands
	Dir      string
	Out      io.Writer
	Logger   Logger
}

func (e *CommandEnvironment) Prepare(ctx context.Context) error {
	if e.Commands.Prepare == "" {
		return nil
	}
	if _, err := run(ctx, e.Dir, e.Out, logger{e.Logger}, e.Commands.Prepare); err != nil {
		return &EnvironmentError{Op: "prepare", Err: err}
	}
	return nil
}

func (e *CommandEnvironment) CleanUp(ctx context.Context) error {
	if e.Commands.CleanUp == "" {
		return nil
	}
	if _, err := run(ctx, e.Dir, e.Out, logger{e.Logger}, e.Commands.CleanUp); err != nil {
		return &EnvironmentError{Op: "cleanup", Err: err}
	}
	return nil
}

// run executes command with [Shell] and returns its stdout. Combined output
// is copied to echo when it is not nil. A non-zero exit is an error that
// includes the command's output.
func run(ctx context.Context, dir string, echo io.Writer, log logger, command string) (string, error) {
	log.debug(ctx, "running command", LogField{Key: "command", Value: command})
	args := append(append([]string(nil), Shell[1:]...), command)
	cmd := exec.CommandContext(ctx, Shell[0], args...)
	cmd.Dir = dir
	var stdout, combined bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, &combined)
	cmd.Stderr = &combined
	if echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, &combined, echo)
		cmd.Stderr = io.MultiWriter(&combined, echo)
	}
	if err := cmd.Run(); err != nil {
		output := strings.TrimSpace(combined.String())
		log.error(ctx, err, "command failed",
			LogField{Key: "command", Value: command},
			LogField{Key: "output", Value: output},
		)
		if output == "" {
			return "", fmt.Errorf("%s: %w", command, err)
		}
		return "", fmt.Errorf("%s: %w\n%s", command, err, output)
	}
	return stdout.String(), nil
}

// ShellQuote quotes s as a single POSIX shell word.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.ContainsRune("@%_-+=:,./", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
