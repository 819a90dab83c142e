package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newTrackCmd creates the 'track' subcommand: the tracking loop alone, in the
// foreground, without the HTTP API.
func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Run the tracking loop in the foreground",
		Long: `Runs the periodic check loop without the HTTP API. The first cycle runs
immediately; later cycles follow the configured interval. Stops on SIGINT
or SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.Tracker.Start(); err != nil {
				return err
			}
			<-ctx.Done()
			a.Tracker.Stop()
			return nil
		},
	}
}
