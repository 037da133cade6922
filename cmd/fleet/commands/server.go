package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfleet/openfleet/pkg/fleet"
)

func newServerCommand() *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage servers",
		Long:  `Create, inspect, control, and delete servers for an owner.`,
	}

	cmd.PersistentFlags().StringVar(&ownerID, "owner", "", "owner id (required)")
	_ = cmd.MarkPersistentFlagRequired("owner")

	cmd.AddCommand(newServerCreateCommand(&ownerID))
	cmd.AddCommand(newServerListCommand(&ownerID))
	cmd.AddCommand(newServerGetCommand(&ownerID))
	cmd.AddCommand(newServerDeleteCommand(&ownerID))
	cmd.AddCommand(newServerActionCommand(&ownerID, fleet.ActionStart,
		"Start a stopped server"))
	cmd.AddCommand(newServerActionCommand(&ownerID, fleet.ActionStop,
		"Stop a running server"))
	cmd.AddCommand(newServerActionCommand(&ownerID, fleet.ActionReboot,
		"Reboot a running server"))
	cmd.AddCommand(newServerStatsCommand(&ownerID))

	return cmd
}

func newServerCreateCommand(ownerID *string) *cobra.Command {
	var instanceType string
	var planType string
	var noWait bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new server",
		Example: `  # Create a standard-tier server and wait for it to come up
  fleet server create --owner alice --type standard

  # Create with an explicit billing plan label
  fleet server create --owner alice --type standard --plan basic

  # Fire and forget; the sweep daemon settles the record
  fleet server create --owner alice --type small --no-wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rec, err := a.controller.CreateServer(ctx, *ownerID, instanceType, planType)
			if err != nil {
				return err
			}

			fmt.Printf("server %s accepted, provisioning...\n", rec.ID)

			if !noWait {
				a.controller.Wait()
				rec, err = a.controller.GetServer(ctx, *ownerID, rec.ID)
				if err != nil {
					return err
				}
			}

			return printRecord(rec)
		},
	}

	cmd.Flags().StringVar(&instanceType, "type", "standard", "instance type from the catalog")
	cmd.Flags().StringVar(&planType, "plan", "", "billing plan label (defaults to the instance type)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for provisioning to finish")

	return cmd
}

func newServerListCommand(ownerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List an owner's servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			servers, err := a.controller.ListServers(ctx, *ownerID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(servers)
			}

			fmt.Printf("%-36s  %-12s  %-12s  %-15s  %s\n", "ID", "TYPE", "STATUS", "ADDRESS", "CREATED")
			for _, srv := range servers {
				fmt.Printf("%-36s  %-12s  %-12s  %-15s  %s\n",
					srv.ID, srv.InstanceType, srv.Status, srv.PublicAddress,
					srv.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newServerGetCommand(ownerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <server-id>",
		Short: "Show one server with live provider state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rec, err := a.controller.GetServer(ctx, *ownerID, args[0])
			if err != nil {
				return err
			}
			return printRecord(rec)
		},
	}
}

func newServerDeleteCommand(ownerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <server-id>",
		Short: "Delete a server and terminate its instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.controller.DeleteServer(ctx, *ownerID, args[0]); err != nil {
				return err
			}

			fmt.Printf("server %s deleted\n", args[0])
			return nil
		},
	}
}

func newServerActionCommand(ownerID *string, action fleet.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <server-id>", action),
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rec, err := a.controller.ApplyAction(ctx, *ownerID, args[0], action)
			if err != nil {
				return err
			}
			return printRecord(rec)
		},
	}
}

func newServerStatsCommand(ownerID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			stats, err := a.controller.Stats(ctx, *ownerID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(stats)
			}

			fmt.Printf("total: %d\n", stats.Total)
			for status, count := range stats.ByStatus {
				fmt.Printf("  %-12s %d\n", status, count)
			}
			return nil
		},
	}
}

func printRecord(rec *fleet.ServerRecord) error {
	if jsonOutput {
		return printJSON(rec)
	}

	fmt.Printf("id:       %s\n", rec.ID)
	fmt.Printf("owner:    %s\n", rec.OwnerID)
	fmt.Printf("type:     %s\n", rec.InstanceType)
	fmt.Printf("status:   %s\n", rec.Status)
	if rec.PublicAddress != "" {
		fmt.Printf("address:  %s\n", rec.PublicAddress)
	}
	if rec.FailureReason != "" {
		fmt.Printf("failure:  %s\n", rec.FailureReason)
	}
	if rec.Health != nil {
		fmt.Printf("health:   checks_passed=%v\n", rec.Health.ChecksPassed)
	}
	fmt.Printf("created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
