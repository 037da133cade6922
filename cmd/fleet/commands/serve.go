package commands

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet daemon",
		Long: `Run the fleet daemon: the reconciliation sweeper and the metrics
endpoint. The sweeper compares every active record against provider
truth on a fixed interval and corrects drift.`,
		Example: `  # Run with the default config file
  fleet serve

  # Run against a specific config
  fleet serve --config /etc/openfleet/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			a.logger.WithField("store", a.cfg.Store.Path).
				WithField("interval", a.cfg.Sweep.Interval.Std().String()).
				Info("fleet daemon starting")

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.sweeper.Start(ctx)
				return nil
			})

			g.Go(func() error {
				return a.metrics.Serve(ctx)
			})

			if err := g.Wait(); err != nil {
				return err
			}

			// Let any in-flight provisioning tails settle before exiting.
			a.controller.Wait()
			a.logger.Info("fleet daemon stopped")
			return nil
		},
	}

	return cmd
}
