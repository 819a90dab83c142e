package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand. It runs the background tracking
// loop and the HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker and the HTTP API",
		Long: `Starts the background tracking loop and serves the JSON API. The first
check cycle runs immediately; later cycles follow the configured interval.
Stops cleanly on SIGINT or SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
