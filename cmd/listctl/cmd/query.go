package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		flags      stateFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Show one page of a view",
		Long: `Search, filter and page a record file the way the dashboard does.

Examples:
  listctl query --view coupons -f coupons.json
  listctl query --view coupons -f coupons.json --filter category=Food --page 2
  listctl query --view notifications -f notifications.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, records, err := flags.load(cmd)
			if err != nil {
				return err
			}
			state, err := flags.state(view)
			if err != nil {
				return err
			}

			result, err := listquery.Query(records, view.Fields, state)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			headers := make([]string, len(view.Columns))
			for i, col := range view.Columns {
				headers[i] = col.Header
			}
			table := output.NewTable(cmd.OutOrStdout(), headers)
			for _, rec := range result.Items {
				row := make([]string, len(view.Columns))
				for i, col := range view.Columns {
					row[i] = col.Text(rec)
				}
				table.AddRow(row)
			}
			if err := table.Render(); err != nil {
				return err
			}

			page, _ := state.Paging()
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d, %d matched\n", page, result.TotalPages, result.TotalMatched)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&flags.page, "page", 0, "page number, 1-based")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "page size (default: the view's)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the page as JSON")
	return cmd
}
