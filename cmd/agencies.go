package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rental-scraper/config"
)

func newAgenciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agencies",
		Short: "Validate the agency table and list its agencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagAgencies
			if path == "" {
				path = config.Load().AgenciesFile
			}
			t, err := config.LoadAgencies(path)
			if err != nil {
				return err
			}
			renderAgencies(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func renderAgencies(w io.Writer, t *config.AgencyTable) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Name", "Base URL", "Listing paths", "Render", "Location", "Enabled"})

	for _, a := range t.Agencies {
		tw.AppendRow(table.Row{
			a.Name,
			a.BaseURL,
			strings.Join(a.ListingPaths, ", "),
			a.RenderMode(),
			t.LocationFor(a),
			a.IsEnabled(),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Enabled", fmt.Sprintf("%d/%d", len(t.EnabledAgencies()), len(t.Agencies))})
	tw.Render()
}
