package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"asset-lifecycle-service/internal/bootstrap"
	"asset-lifecycle-service/internal/core/domain"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <asset-id>",
		Short: "Show the version groups of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				groups, err := app.Versions.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no artifacts")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderHistory(groups))
				return nil
			})
		},
	}
}

func renderHistory(groups []domain.VersionGroup) string {
	columns := []column{
		{title: "Group"},
		{title: "Current"},
		{title: "Taken"},
		{title: "Model"},
		{title: "Model Size", numeric: true},
		{title: "Source"},
		{title: "Source Size", numeric: true},
	}
	return renderTable(columns, historyRows(groups))
}

func historyRows(groups []domain.VersionGroup) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		taken := "-"
		if g.Timestamp > 0 {
			taken = time.UnixMilli(g.Timestamp).UTC().Format(time.RFC3339)
		}
		modelLoc, modelSize := versionCells(g.Model)
		sourceLoc, sourceSize := versionCells(g.Source)
		rows = append(rows, []string{
			g.GroupKey,
			strconv.FormatBool(g.IsCurrent),
			taken,
			modelLoc,
			modelSize,
			sourceLoc,
			sourceSize,
		})
	}
	return rows
}

func versionCells(v *domain.ArtifactVersion) (string, string) {
	if v == nil {
		return "-", "-"
	}
	return v.Locator, humanize.IBytes(uint64(v.SizeBytes))
}
