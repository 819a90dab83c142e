package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cwaldren/pricewatch/internal/store"
)

// newProductsCmd groups the catalog management subcommands.
func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the tracked product catalog",
	}
	cmd.AddCommand(newProductsAddCmd(), newProductsListCmd(), newProductsRemoveCmd())
	return cmd
}

func newProductsAddCmd() *cobra.Command {
	var (
		targetPrice string
		selector    string
	)

	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Start tracking a product",
		Args:  cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			p := store.Product{Name: args[0], URL: args[1], Selector: selector}
			if targetPrice != "" {
				target, err := decimal.NewFromString(targetPrice)
				if err != nil || target.IsNegative() {
					return fmt.Errorf("--target must be a non-negative decimal")
				}
				p.TargetPrice = &target
			}

			created, err := a.Store.AddProduct(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracking %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPrice, "target", "", "alert when the price reaches this value")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to try before the built-in heuristics")
	return cmd
}

func newProductsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked products",

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			products, err := a.Store.ListActive(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCURRENT\tTARGET\tURL")
			for _, p := range products {
				current, target := "-", "-"
				if p.CurrentPrice != nil {
					current = p.CurrentPrice.StringFixed(2)
				}
				if p.TargetPrice != nil {
					target = p.TargetPrice.StringFixed(2)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, current, target, p.URL)
			}
			return w.Flush()
		},
	}
}

func newProductsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Stop tracking a product (history is kept)",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Store.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped tracking %s\n", args[0])
			return nil
		},
	}
}
