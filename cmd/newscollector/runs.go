package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"NewsCollector/internal/app"
	"NewsCollector/internal/domain"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent collection runs from the monitoring log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				entries, err := a.RunLog().Recent(c, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRuns(entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderRuns(entries []domain.RunLog) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		duration := "running"
		if e.EndTime != nil {
			duration = e.EndTime.Sub(e.StartTime).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.TaskName,
			e.StartTime.Format(timeColumnLayout),
			duration,
			string(e.Status),
			strconv.Itoa(e.ItemsProcessed),
			strconv.Itoa(e.ItemsSucceeded),
			strconv.Itoa(e.ItemsFailed),
			truncate(e.ErrorMessage, 40),
		})
	}
	return renderTable(
		[]string{"ID", "Task", "Started", "Duration", "Status", "Processed", "Saved", "Skipped", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
