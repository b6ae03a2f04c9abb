// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with LISTQUERY, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LISTQUERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/listquery", "$HOME/.listquery", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "listquery",
		Short: "Query and update the lists of a site through compiled CAML views",
		Long: `Query and update the lists of a site through compiled CAML views.

Queries are described as YAML or JSON documents naming a list, the columns to read, a filter
tree and an optional join. They are compiled to CAML, executed page by page against the site's
REST endpoint and printed as JSON rows.`,
		SilenceUsage: true,
	}
}
