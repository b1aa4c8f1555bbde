package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-resource-list/pkg/di"
	"github.com/goliatone/go-resource-list/resource"
)

func newDeleteCmd(a *app) *cobra.Command {
	var related []string

	cmd := &cobra.Command{
		Use:     "delete <resource> <id>...",
		Short:   "Delete records",
		Example: "  listctl delete recruitments r-101 --related applications",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			client, err := di.NewRemoteClient[row](a.container, args[0], resource.WithRelated(related...))
			if err != nil {
				return err
			}

			for _, id := range args[1:] {
				if err := client.Delete(ctx, id); err != nil {
					return fmt.Errorf("delete %s %s: %w", client.Resource(), id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", client.Resource(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&related, "related", nil, "Resources whose lists are also invalidated")
	return cmd
}
