package shared

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/peterldowns/rollcheck"
)

// TestingEnv is the only value of --env that allows rollcheck to touch a
// database.
const TestingEnv = "testing"

// ErrNotTesting is returned by [StateT.RequireTesting].
var ErrNotTesting = errors.New("rollcheck can only run against a disposable test database; pass --env=testing to confirm")

type Flags struct {
	LogFormat  *string   // see root.go
	Database   *string   // see root.go
	Driver     *string   // see root.go
	Migrations *[]string // see root.go
	TableName  *string   // see root.go
	Schemas    *[]string // see root.go
	ConfigFile *string   // see root.go
	Env        *string   // see root.go
	NoColor    *bool     // see root.go
}

type Config struct {
	Database   string             `yaml:"database"`
	Driver     string             `yaml:"driver"`
	Migrations []string           `yaml:"migrations"`
	TableName  string             `yaml:"table_name"`
	Schemas    []string           `yaml:"schemas"`
	LogFormat  LogFormat          `yaml:"log_format"`
	Commands   rollcheck.Commands `yaml:"commands"`
}

type StateT struct {
	Flags  Flags
	Config Config
}

var State StateT //nolint:gochecknoglobals

func (state *StateT) Parse() {
	cf := state.Configfile()
	if !cf.IsSet() {
		return
	}
	file, err := os.Open(cf.Value())
	if err != nil {
		panic(fmt.Errorf("open config: %w", err))
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		panic(fmt.Errorf("read config: %w", err))
	}
	if err := yaml.Unmarshal(contents, &state.Config); err != nil {
		panic(fmt.Errorf("parse config: %w", err))
	}
}

func (state StateT) Configfile() Variable[string] {
	return NewVariable(
		"configfile",
		deref(state.Flags.ConfigFile),
		os.Getenv("ROLLCHECK_CONFIGFILE"),
		CheckPath(".rollcheck.yaml"), // in cwd
		RepoPath(".rollcheck.yaml"),  // in repo root
		"",                           // default to missing
	)
}

func (state StateT) Database() Variable[string] {
	return NewVariable(
		"database",
		deref(state.Flags.Database),
		os.Getenv("ROLLCHECK_DATABASE"),
		state.Config.Database,
		"", // default to missing
	)
}

func (state StateT) Driver() Variable[string] {
	return NewVariable(
		"driver",
		deref(state.Flags.Driver),
		os.Getenv("ROLLCHECK_DRIVER"),
		state.Config.Driver,
		InferDriver(state.Database().Value()),
		"", // default to missing
	)
}

// Migrations is the list of migration roots joined with
// [filepath.ListSeparator], the same form ROLLCHECK_MIGRATIONS takes. Use
// [SplitPaths] to get the individual roots.
func (state StateT) Migrations() Variable[string] {
	return NewVariable(
		"migrations",
		JoinPaths(derefs(state.Flags.Migrations)),
		os.Getenv("ROLLCHECK_MIGRATIONS"),
		JoinPaths(state.Config.Migrations),
		"", // default to missing
	)
}

func (state StateT) TableName() Variable[string] {
	return NewVariable(
		"table-name",
		deref(state.Flags.TableName),
		os.Getenv("ROLLCHECK_TABLENAME"),
		state.Config.TableName,
		rollcheck.DefaultTableName, // default
	)
}

// Schemas is a comma-separated list of the postgres schemas to snapshot.
func (state StateT) Schemas() Variable[string] {
	return NewVariable(
		"schema",
		strings.Join(derefs(state.Flags.Schemas), ","),
		strings.Join(state.Config.Schemas, ","),
		"public", // default
	)
}

func (state StateT) Env() Variable[string] {
	return NewVariable(
		"env",
		deref(state.Flags.Env),
		os.Getenv("ROLLCHECK_ENV"),
		"", // default to missing
	)
}

func (state StateT) LogFormat() Variable[LogFormat] {
	return NewVariable(
		"log-format",
		LogFormat(deref(state.Flags.LogFormat)),
		LogFormat(os.Getenv("ROLLCHECK_LOG_FORMAT")),
		state.Config.LogFormat,
		LogFormatText, // default
	)
}

func (state StateT) NoColor() Variable[bool] {
	return NewVariable(
		"no-color",
		state.Flags.NoColor != nil && *state.Flags.NoColor,
		os.Getenv("NO_COLOR") != "",
	)
}

// RequireTesting refuses to continue unless the user confirmed that the
// database is disposable.
func (state StateT) RequireTesting() error {
	if state.Env().Value() != TestingEnv {
		return ErrNotTesting
	}
	return nil
}

// Dialect returns the dialect for the configured driver.
func (state StateT) Dialect() (rollcheck.Dialect, error) {
	driver := state.Driver()
	if err := Validate(driver); err != nil {
		return nil, err
	}
	return rollcheck.DialectFor(driver.Value(), strings.Split(state.Schemas().Value(), ",")...)
}

func (state StateT) Logger() (*log.Logger, LogAdapter) {
	var logger *log.Logger
	format := state.LogFormat().Value()
	switch format {
	case LogFormatText:
		logger = log.NewWithOptions(os.Stderr, log.Options{Formatter: log.TextFormatter})
	case LogFormatJSON:
		logger = log.NewWithOptions(os.Stderr, log.Options{Formatter: log.JSONFormatter})
	default:
		panic(fmt.Errorf("unknown log format: %s", format))
	}
	return logger, LogAdapter{logger}
}

func JoinPaths(paths []string) string {
	return strings.Join(paths, string(filepath.ListSeparator))
}

func SplitPaths(paths string) []string {
	var result []string
	for _, p := range filepath.SplitList(paths) {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func RepoPath(p string) string {
	root, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	rootConfig := path.Join(strings.TrimSpace(string(root)), p)
	return CheckPath(rootConfig)
}

func CheckPath(p string) string {
	p, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefs(s *[]string) []string {
	if s == nil {
		return nil
	}
	return *s
}
