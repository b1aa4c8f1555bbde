package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-resource-list/facets"
	"github.com/goliatone/go-resource-list/pkg/di"
	"github.com/goliatone/go-resource-list/query"
)

// optionsPageSize bounds how many source records feed one option list.
const optionsPageSize = 100

func newOptionsCmd(a *app) *cobra.Command {
	var source, valueField, labelField string

	cmd := &cobra.Command{
		Use:     "options <resource> <filter>",
		Short:   "Show the values offered by a filter",
		Example: "  listctl options recruitments team --source teams --label name",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			facet := facets.Facet{Resource: args[0], Field: args[1], Source: source}
			if facet.Source == "" {
				facet.Source = args[1]
			}

			client, err := di.NewRemoteClient[row](a.container, facet.Source)
			if err != nil {
				return err
			}

			options, err := a.container.Facets().Options(ctx, facet, func(ctx context.Context) ([]facets.Option, error) {
				page, err := client.List(ctx, nil, query.PageSpec{Index: 1, Size: optionsPageSize})
				if err != nil {
					return nil, err
				}
				out := make([]facets.Option, 0, len(page.Items))
				for _, r := range page.Items {
					out = append(out, facets.Option{
						Value: fmt.Sprint(r[valueField]),
						Label: fmt.Sprint(r[labelField]),
					})
				}
				return out, nil
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VALUE\tLABEL")
			for _, opt := range options {
				fmt.Fprintf(tw, "%s\t%s\n", opt.Value, opt.Label)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Resource the options are read from (default: the filter name)")
	cmd.Flags().StringVar(&valueField, "value", "id", "Field used as option value")
	cmd.Flags().StringVar(&labelField, "label", "name", "Field used as option label")
	return cmd
}
