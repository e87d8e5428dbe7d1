package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asset-lifecycle-service/internal/bootstrap"
	"asset-lifecycle-service/internal/core/domain"
)

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <asset-id> <locator> <kind>",
		Short: "Make a backup the live artifact again",
		Long:  "Backs up the live artifact of the same kind, then copies the backup into a new live slot.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			kind, err := domain.ParseFileKind(args[2])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				res, err := app.Uploads.RestoreVersion(cmd.Context(), id, args[1], kind)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "restored %s as %s (%d reads to confirm)\n", kind, res.Locator, res.Attempts)
				if res.Backup != nil {
					fmt.Fprintf(out, "previous live version backup: %s %s\n", res.Backup.Status, res.Backup.Locator)
				}
				return nil
			})
		},
	}
}
