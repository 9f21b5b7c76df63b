package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newScrapeCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one aggregation and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.cache.Get(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			report := a.insights.Generate(snap.Listings)
			a.insights.Print(os.Stdout, report, snap)
			if a.cfg.CSVOutputPath != "" {
				fmt.Printf("  Done. CSV export → %s\n\n", a.cfg.CSVOutputPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}
