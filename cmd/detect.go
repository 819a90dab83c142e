package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwaldren/pricewatch/internal/price"
)

// newDetectCmd creates the 'detect' subcommand: ad-hoc price detection for a
// URL without adding it to the catalog.
func newDetectCmd() *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Detect the price on a page without tracking it",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			value, ok := a.Detector.Detect(cmd.Context(), args[0], selector)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no price found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), price.Format(value))
			return nil
		},
	}

	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to try before the built-in heuristics")
	return cmd
}
