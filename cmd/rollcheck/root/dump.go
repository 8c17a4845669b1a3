package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/peterldowns/rollcheck"
	"github.com/peterldowns/rollcheck/cmd/rollcheck/shared"
)

var DumpFlags struct { //nolint:gochecknoglobals
	Out *string
}

var dumpCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "dump",
	Short: "Print the schema snapshot that check compares",
	Long: shared.CLIHelp(`
Prints the current schema of the database exactly as "check" sees it when it
takes a snapshot. Two databases with the same schema produce the same dump, no
matter what data they hold or in what order their objects were created.

Use it to see why a rollback diverged, or to compare two databases by hand.
	`),
	Example: shared.CLIExample(`
# Dump the schema before and after running a migration by hand
rollcheck dump --out before.sql
psql $DATABASE -f ./migrations/0002_add_users_name.up.sql
psql $DATABASE -f ./migrations/0002_add_users_name.down.sql
rollcheck dump --out after.sql
diff before.sql after.sql # should show no differences
	`),
	GroupID:          "dev",
	TraverseChildren: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && *DumpFlags.Out == "" {
			*DumpFlags.Out = args[0]
		}
		shared.State.Parse()
		if err := shared.Validate(shared.State.Database()); err != nil {
			return err
		}
		dialect, err := shared.State.Dialect()
		if err != nil {
			return err
		}
		db, err := shared.OpenDB(dialect)
		if err != nil {
			return err
		}
		defer db.Close()

		contents, err := rollcheck.Dump(cmd.Context(), db, dialect)
		if err != nil {
			return err
		}

		fout := *DumpFlags.Out
		if fout == "-" || fout == "" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), contents)
			return err
		}
		file, err := os.OpenFile(fout, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = fmt.Fprintln(file, contents)
		return err
	},
}

func init() { //nolint:gochecknoinits
	DumpFlags.Out = dumpCmd.Flags().StringP("out", "o", "", "path to write the schema to, '-' means stdout")
}
