package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfleet/openfleet/pkg/config"
)

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List available instance types",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			specs := cfg.BuildCatalog().Specs()
			if jsonOutput {
				return printJSON(specs)
			}

			fmt.Printf("%-14s  %-10s  %4s  %6s  %8s  %s\n",
				"NAME", "TYPE", "CPU", "RAM", "STORAGE", "MONTHLY")
			for _, spec := range specs {
				fmt.Printf("%-14s  %-10s  %4d  %4.0fGB  %6dGB  $%.2f\n",
					spec.Name, spec.ProviderType, spec.CPU, spec.RAMGB,
					spec.StorageGB, spec.MonthlyCost)
			}
			return nil
		},
	}
}
