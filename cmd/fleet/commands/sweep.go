package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation pass and exit",
		Long: `Run a single reconciliation pass against the provider.

Every active record is compared with the provider's view of its
instance. Status drift is corrected, addresses are refreshed, and
records whose instances vanished are retired.`,
		Example: `  # One-shot reconciliation, e.g. from cron
  fleet sweep`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			corrected, err := a.sweeper.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("sweep complete, %d record(s) corrected\n", corrected)
			return nil
		},
	}

	return cmd
}
