package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asset-lifecycle-service/internal/bootstrap"
	"asset-lifecycle-service/internal/core/domain"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var qaApproved bool

	cmd := &cobra.Command{
		Use:   "status <asset-id> <target>",
		Short: "Move an asset to another status through the QA gate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			target, err := domain.ParseAssetStatus(args[1])
			if err != nil {
				return err
			}
			var override *bool
			if cmd.Flags().Changed("qa-approved") {
				override = &qaApproved
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				asset, err := app.Gate.UpdateStatus(cmd.Context(), id, target, override)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (qa %s, revision %d)\n",
					asset.ID, asset.Status, asset.QAVerdict, asset.RevisionCount)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&qaApproved, "qa-approved", false, "Override the stored QA verdict before the delivery check")

	return cmd
}
