package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vendor-dashboard-api/internal/output"
	"vendor-dashboard-api/internal/views"
)

func newViewsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "views",
		Aliases: []string{"ls"},
		Short:   "List dashboard views",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views.All())
			}

			table := output.NewTable(cmd.OutOrStdout(), []string{"view", "title", "resource", "page size", "searchable"})
			for _, v := range views.All() {
				var searchable []string
				for _, f := range v.Fields {
					if f.Searchable {
						searchable = append(searchable, f.Key)
					}
				}
				table.AddRow([]string{
					v.Name,
					v.Title,
					v.Resource,
					strconv.Itoa(v.DefaultPageSize),
					strings.Join(searchable, ", "),
				})
			}
			return table.Render()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
