package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail",
		Long: `Show the audit trail of mutating operations: creates, actions,
deletes, and sweeper corrections. Newest entries first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			entries, err := a.store.ListAuditEntries(ctx, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(entries)
			}

			for _, entry := range entries {
				fmt.Printf("%s  %-22s  actor=%-10s  target=%s",
					entry.Timestamp.Format("2006-01-02 15:04:05"),
					entry.Action, entry.Actor, entry.TargetID)
				if entry.Details != "" {
					fmt.Printf("  (%s)", entry.Details)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}
