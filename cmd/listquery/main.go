package main

import (
	"os"

	"github.com/openfga/listquery/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(cmd.NewCompileCommand())
	rootCmd.AddCommand(cmd.NewQueryCommand())
	rootCmd.AddCommand(cmd.NewWriteCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
