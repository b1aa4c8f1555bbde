package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/listcontroller"
	"github.com/goliatone/go-resource-list/pkg/di"
	"github.com/goliatone/go-resource-list/query"
	"github.com/goliatone/go-resource-list/urlsync"
)

// row is one record as decoded from the API.
type row map[string]any

type listFlags struct {
	filters  []string
	search   string
	page     int
	pageSize int
	rawQuery string
	columns  []string
}

func newListCmd(a *app) *cobra.Command {
	f := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Show one page of a resource list",
		Example: "  listctl list members --filter team=T1 --search analyst --page 2\n" +
			"  listctl list recruitments --query 'team=T2&page=3'",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			return a.list(ctx, cmd.OutOrStdout(), args[0], f)
		},
	}

	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "Filter as name=value, repeatable")
	cmd.Flags().StringVar(&f.search, "search", "", "Free-text search")
	cmd.Flags().IntVar(&f.page, "page", 0, "Page index, starting at 1")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Page size (10, 20, 50 or 100)")
	cmd.Flags().StringVar(&f.rawQuery, "query", "", "Query string as found in the console URL")
	cmd.Flags().StringSliceVar(&f.columns, "columns", nil, "Columns to print (default: every field)")
	return cmd
}

// location is the urlsync.History of a one-shot command: it starts from the flags
// and ends with the canonical query of what was shown.
type location struct {
	mu    sync.Mutex
	query string
}

func (l *location) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

func (l *location) ReplaceQuery(q string) {
	l.mu.Lock()
	l.query = q
	l.mu.Unlock()
}

func (a *app) list(ctx context.Context, w io.Writer, name string, f *listFlags) error {
	schema, rawQuery, err := f.schema(name)
	if err != nil {
		return err
	}

	client, err := di.NewRemoteClient[row](a.container, name)
	if err != nil {
		return err
	}

	settled := make(chan struct{}, 1)
	loc := &location{query: rawQuery}
	ctrl, err := di.NewListController(a.container, schema, client.Fetcher(),
		listcontroller.WithHistory[row](loc),
		listcontroller.WithObserver(func(listcontroller.Snapshot[row]) {
			select {
			case settled <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.Mount(ctx); err != nil {
		return err
	}

	snap, err := waitSettled(ctx, ctrl, settled)
	if err != nil {
		return err
	}
	if snap.Err != nil {
		return snap.Err
	}

	if err := printRows(w, snap.Items, f.columns); err != nil {
		return err
	}
	footer := fmt.Sprintf("\npage %d of %d, %d total", snap.Page.Index, snap.LastPage(), snap.Total)
	if q := loc.Query(); q != "" {
		footer += fmt.Sprintf(" (?%s)", q)
	}
	_, err = fmt.Fprintln(w, footer)
	return err
}

// waitSettled blocks until the controller shows a page that needs no clamping, or
// failed.
func waitSettled[T any](ctx context.Context, ctrl *listcontroller.Controller[T], settled <-chan struct{}) (listcontroller.Snapshot[T], error) {
	for {
		snap := ctrl.Snapshot()
		switch snap.Status {
		case listcontroller.StatusFailed:
			return snap, nil
		case listcontroller.StatusReady:
			if !snap.Page.OutOfRange(snap.Total) {
				return snap, nil
			}
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-settled:
		}
	}
}

func reserved(name string) bool {
	return name == query.SearchField || name == query.ParamPage || name == query.ParamPageSize
}

// schema builds the list schema from the flags. Every filter named in the flags or
// the raw query is accepted, since the command does not know the resource's facets.
func (f *listFlags) schema(resource string) (query.Schema, string, error) {
	state := query.State{Filters: query.FilterSet{}}
	var names []string

	if raw := strings.TrimPrefix(f.rawQuery, "?"); raw != "" {
		for _, pair := range strings.Split(raw, "&") {
			name, _, _ := strings.Cut(pair, "=")
			if name != "" && !reserved(name) {
				names = append(names, name)
			}
		}
		rawSchema := query.Schema{Resource: resource, Filters: names}.WithDefaults()
		parsed, problems := urlsync.Parse(rawSchema, raw)
		if len(problems) > 0 {
			return query.Schema{}, "", errkind.Validation("invalid --query", problems...)
		}
		state = parsed
		if state.Filters == nil {
			state.Filters = query.FilterSet{}
		}
	}

	for _, kv := range f.filters {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return query.Schema{}, "", errkind.Validation("invalid --filter", errkind.Field("filter", "want name=value", kv))
		}
		if reserved(name) {
			return query.Schema{}, "", errkind.Validation("invalid --filter", errkind.Field("filter", "reserved name, use --search, --page or --page-size", kv))
		}
		names = append(names, name)
		state.Filters[name] = value
	}
	if f.search != "" {
		state.Filters[query.SearchField] = f.search
	}
	if f.page > 0 {
		state.Page.Index = f.page
	}
	if f.pageSize > 0 {
		state.Page.Size = f.pageSize
	}

	slices.Sort(names)
	schema := query.Schema{Resource: resource, Filters: slices.Compact(names)}.WithDefaults()
	if state.Page.Index == 0 {
		state.Page.Index = 1
	}
	if state.Page.Size == 0 {
		state.Page.Size = schema.DefaultPageSize
	}
	if !schema.AllowsPageSize(state.Page.Size) {
		return query.Schema{}, "", errkind.Validation("invalid --page-size",
			errkind.Field("page-size", fmt.Sprintf("must be one of %v", schema.PageSizes), state.Page.Size))
	}

	return schema, urlsync.Serialize(schema, state), nil
}

func printRows(w io.Writer, rows []row, columns []string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No records found.")
		return err
	}
	if len(columns) == 0 {
		columns = columnsOf(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, r := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := r[col]; ok && v != nil {
				values[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}

// columnsOf returns the field names of rows, "id" first and the rest sorted.
func columnsOf(rows []row) []string {
	seen := map[string]bool{}
	var columns []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	slices.SortFunc(columns, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "id":
			return -1
		case b == "id":
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return columns
}
