package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newHistoryCmd creates the 'history' subcommand: price history for one
// product, newest-first, or bulk clearing of all recorded history.
func newHistoryCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "history [product-id]",
		Short: "Show or clear recorded price history",
		Args:  cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if clear {
				if err := a.Store.ClearObservations(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "price history cleared")
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("a product id is required unless --clear is given")
			}

			p, err := a.Store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			obs, err := a.Store.ListObservations(cmd.Context(), p.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "history for %s\n", p.Name)
			fmt.Fprintln(w, "PRICE\tCHANGE\tWHEN")
			for i, o := range obs {
				change := "-"
				// Newest-first: the previous reading sits one row down.
				if i+1 < len(obs) {
					if diff := o.Price.Sub(obs[i+1].Price); !diff.IsZero() {
						change = diff.StringFixed(2)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", o.Price.StringFixed(2), change, o.At.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "delete all recorded price history")
	return cmd
}
