package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peterldowns/rollcheck/cmd/rollcheck/shared"
)

var Command = &cobra.Command{ //nolint:gochecknoglobals
	Version: shared.VersionString(),
	Use:     "rollcheck",
	Short:   "check that database migrations roll back cleanly",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf(`invalid command: "%s"`, args[0])
		}
		return cmd.Help()
	},
}

func init() { //nolint:gochecknoinits
	Command.CompletionOptions.HiddenDefaultCmd = true
	Command.TraverseChildren = true
	Command.SilenceErrors = true
	Command.SilenceUsage = true
	Command.SetVersionTemplate("{{.Version}}\n")

	flags := Command.PersistentFlags()
	shared.State.Flags.LogFormat = flags.StringP(
		"log-format",
		"l",
		"",
		fmt.Sprintf("[ROLLCHECK_LOG_FORMAT] '%s' or '%s', the log line format (default '%s')", shared.LogFormatText, shared.LogFormatJSON, shared.LogFormatText),
	)
	shared.State.Flags.Database = flags.StringP(
		"database",
		"d",
		"",
		"[ROLLCHECK_DATABASE] a 'postgres://...' connection string or the path to a sqlite file",
	)
	shared.State.Flags.Driver = flags.String(
		"driver",
		"",
		"[ROLLCHECK_DRIVER] 'pgx' or 'sqlite', inferred from the database if not set",
	)
	shared.State.Flags.Migrations = flags.StringArrayP(
		"migrations",
		"m",
		nil,
		"[ROLLCHECK_MIGRATIONS] a directory containing *.up.sql and *.down.sql migrations, may be repeated",
	)
	shared.State.Flags.TableName = flags.String(
		"table-name",
		"",
		"[ROLLCHECK_TABLENAME] the table that records applied migrations, 'table' or 'schema.table'",
	)
	shared.State.Flags.Schemas = flags.StringArrayP(
		"schema",
		"s",
		nil,
		`a postgres schema to snapshot, may be repeated (default "public")`,
	)
	shared.State.Flags.ConfigFile = flags.StringP(
		"configfile",
		"f",
		"",
		"[ROLLCHECK_CONFIGFILE] a path to a configuration file",
	)
	shared.State.Flags.Env = flags.String(
		"env",
		"",
		fmt.Sprintf("[ROLLCHECK_ENV] must be '%s' for commands that change the database", shared.TestingEnv),
	)
	shared.State.Flags.NoColor = flags.Bool(
		"no-color",
		false,
		"[NO_COLOR] print diffs without colors",
	)
	_ = Command.MarkPersistentFlagDirname("migrations")
	_ = Command.MarkPersistentFlagFilename("configfile", "yaml", "yml")

	Command.AddGroup(
		&cobra.Group{
			ID:    "checking",
			Title: "Checking:",
		},
		&cobra.Group{
			ID:    "dev",
			Title: "Development:",
		},
	)

	// checking
	Command.AddCommand(checkCmd)
	Command.AddCommand(statusCmd)

	// dev
	Command.AddCommand(configCmd)
	Command.AddCommand(dumpCmd)
	Command.AddCommand(versionCmd)
	Command.SetHelpCommandGroupID("dev")
}
