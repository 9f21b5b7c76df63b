// Package cmd implements the rental-scraper command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	flagAgencies string
	flagLogLevel string

	rootCmd = &cobra.Command{
		Use:   "rental-scraper",
		Short: "Aggregate rental listings from agency websites",
		Long: `rental-scraper scrapes the listing pages of rental agencies, merges them into one
deduplicated feed ordered by freshness and notifies about listings that are new.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAgencies, "agencies", "",
		"agency table YAML (default: AGENCIES_FILE or the built-in table)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"debug, info, warn or error (default: LOG_LEVEL or info)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newScrapeCommand())
	rootCmd.AddCommand(newAgenciesCommand())
}
