package cmd

import (
	"github.com/spf13/cobra"

	"github.com/redharvest/redharvest-go/cmd/analyze"
	"github.com/redharvest/redharvest-go/cmd/serve"
	"github.com/redharvest/redharvest-go/internal/conf"
)

// RootCommand creates and returns the root command with all subcommands
// attached.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redharvest",
		Short: "Red Harvest pomegranate classification service",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	rootCmd.AddCommand(
		serve.Command(settings),
		analyze.Command(settings),
	)

	return rootCmd
}
