// Package cmd contains the listctl commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/logging"
	"vendor-dashboard-api/internal/source"
	"vendor-dashboard-api/internal/views"
)

// NewRootCmd builds the listctl command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "listctl",
		Short: "Query vendor dashboard record dumps offline",
		Long: `listctl runs the dashboard list engine against record files saved from
the vendor API, so views can be searched, filtered, paged and exported
without a running server.

Example usage:
  listctl views                                        # List dashboard views
  listctl query --view coupons --file coupons.json     # Show the first page
  listctl query --view coupons --file c.json -q pizza --filter status=approved
  listctl export --view payment-weekly --file weeks.json -o weekly.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			slog.SetDefault(logging.New("development", level, cmd.ErrOrStderr()))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newViewsCmd(), newQueryCmd(), newExportCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// stateFlags are the query state flags shared by query and export.
type stateFlags struct {
	view     string
	file     string
	search   string
	filters  []string
	page     int
	pageSize int
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.view, "view", "", "view name (see 'listctl views')")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "record file, bare array or API response ('-' for stdin)")
	cmd.Flags().StringVarP(&f.search, "search", "q", "", "free-text search term")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "field=value equality filter (repeatable)")
	_ = cmd.MarkFlagRequired("view")
	_ = cmd.MarkFlagRequired("file")
}

// state builds the query state for view from the flags.
func (f *stateFlags) state(view views.View) (listquery.QueryState, error) {
	state := listquery.DefaultState()
	state.PageSize = view.DefaultPageSize
	state.SearchTerm = strings.TrimSpace(f.search)

	if f.page != 0 {
		state.Page = f.page
	}
	if f.pageSize != 0 {
		state.PageSize = min(f.pageSize, views.MaxPageSize)
	}

	for _, raw := range f.filters {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return listquery.QueryState{}, fmt.Errorf("invalid filter %q, expected field=value", raw)
		}
		if !view.HasField(key) {
			return listquery.QueryState{}, fmt.Errorf("view %s has no field %q", view.Name, key)
		}
		state.Filters[key] = value
	}

	return state, nil
}

// load resolves the view and reads its records from the input file.
func (f *stateFlags) load(cmd *cobra.Command) (views.View, []listquery.Record, error) {
	view, err := views.Lookup(f.view)
	if err != nil {
		return views.View{}, nil, err
	}

	var r io.Reader
	if f.file == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(f.file)
		if err != nil {
			return views.View{}, nil, err
		}
		defer file.Close()
		r = file
	}

	envelope, _ := source.Envelope(view.Resource)
	records, err := source.ParseRecords(r, envelope)
	if err != nil {
		return views.View{}, nil, fmt.Errorf("reading %s: %w", f.file, err)
	}

	slog.Debug("records loaded", "view", view.Name, "file", f.file, "count", len(records))
	return view, records, nil
}
