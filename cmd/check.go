package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCheckCmd creates the 'check' subcommand: one pass over every active
// product, right now, without starting the loop.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one check cycle over all tracked products",

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Tracker.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("run check cycle: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d products: %d updated, %d skipped\n",
				res.Checked, res.Updated, res.Skipped)
			return nil
		},
	}
}
