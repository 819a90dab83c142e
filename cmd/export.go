package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newExportCmd creates the 'export' subcommand: dump the catalog and its
// price history as JSON.
func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tracked products and price history as JSON",

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return a.Exporter.Write(cmd.Context(), w)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
