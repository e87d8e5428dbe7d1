package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asset-lifecycle-service/internal/bootstrap"
)

func newAdvanceRevisionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance-revision <asset-id>",
		Short: "Open the next review round for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				n, err := app.Revisions.AdvanceRevision(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is at revision %d\n", id, n)
				return nil
			})
		},
	}
}
