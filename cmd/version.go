package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfga/listquery/internal/build"
)

// NewVersionCommand returns the command to get the listquery version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the listquery version",
		Long:  "Return the listquery version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "listquery version %s date %s commit %s\n", build.Version, build.Date, build.Commit)
	return err
}
