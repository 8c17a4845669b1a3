package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peterldowns/rollcheck/cmd/rollcheck/shared"
)

var versionCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "version",
	GroupID: "dev",
	Short:   "show the version of this binary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), shared.VersionString())
		return err
	},
}
