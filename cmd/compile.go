package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfga/listquery/pkg/caml"
)

const whereOnlyFlag = "where-only"

// NewCompileCommand returns the command printing the CAML view compiled from a descriptor. It
// does not talk to a site.
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <descriptor-file>",
		Short: "Print the CAML view compiled from a query descriptor",
		Long: `Print the CAML view compiled from a query descriptor.

The descriptor is a YAML or JSON document; pass '-' to read it from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: compile,
	}

	cmd.Flags().Bool(whereOnlyFlag, false, "print only the compiled predicate of the descriptor's where clause")

	return cmd
}

func compile(cmd *cobra.Command, args []string) error {
	data, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}

	d, err := caml.ParseDescriptor(data)
	if err != nil {
		return err
	}

	whereOnly, err := cmd.Flags().GetBool(whereOnlyFlag)
	if err != nil {
		return err
	}

	var out string
	if whereOnly {
		out, err = caml.CompilePredicate(d.Where)
	} else {
		out, err = caml.Compile(d)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
