package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleet",
		Short: "OpenFleet - managed server lifecycle controller",
		Long: `OpenFleet provisions and manages cloud servers on behalf of users.

It keeps a local record of every server, drives the provider through
create/start/stop/reboot/terminate, and continuously reconciles its
records against provider truth so out-of-band changes never leave the
two views diverged.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "openfleet.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSweepCommand())
	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newAuditCommand())

	return rootCmd
}
