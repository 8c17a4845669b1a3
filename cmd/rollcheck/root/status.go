package root

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peterldowns/rollcheck"
	"github.com/peterldowns/rollcheck/cmd/rollcheck/shared"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "status",
	Aliases: []string{"pending"},
	Short:   "Show which migrations have been applied and which are pending",
	Long: shared.CLIHelp(`
Prints the status report that "check" reads to decide what to do next,
followed by the pending migrations it parsed from that report, one per line.

This does not change the database.
	`),
	GroupID:          "checking",
	TraverseChildren: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shared.State.Parse()
		if err := shared.Validate(shared.State.Database()); err != nil {
			return err
		}
		dialect, err := shared.State.Dialect()
		if err != nil {
			return err
		}
		slogger, mlogger := shared.State.Logger()
		db, err := shared.OpenDB(dialect)
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := shared.State.StatusSource(db, dialect, mlogger)
		if err != nil {
			return err
		}
		report, err := source.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.TrimRight(report, "\n"))
		pending := rollcheck.ParsePending(report)
		slogger.Info("parsed status report", "pending", len(pending))
		for _, id := range pending {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}
