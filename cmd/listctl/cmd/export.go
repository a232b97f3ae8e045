package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vendor-dashboard-api/internal/listquery"
)

func newExportCmd() *cobra.Command {
	var (
		flags   stateFlags
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every matching record of a view as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, records, err := flags.load(cmd)
			if err != nil {
				return err
			}
			state, err := flags.state(view)
			if err != nil {
				return err
			}

			matched, err := listquery.Match(records, view.Fields, state)
			if err != nil {
				return err
			}
			rows, err := listquery.ExportProjection(matched, view.Columns)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			if _, err := w.Write(listquery.EncodeCSV(rows)); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(matched), outPath)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}
