package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"NewsCollector/internal/app"
	"NewsCollector/internal/domain"
)

const timeColumnLayout = "2006-01-02 15:04"

func newItemsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and edit collected items",
	}
	cmd.AddCommand(
		newItemsListCommand(ctx),
		newItemsGetCommand(ctx),
		newItemsFindCommand(ctx),
		newItemsUpdateCommand(ctx),
		newItemsDeleteCommand(ctx),
	)
	return cmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		skip   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				return printItems(cmd.OutOrStdout(), a.Repository().GetAll(c, limit, skip), asJSON)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of items to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newItemsFindCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		skip   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "find key=value...",
		Short:   "Find items matching every given field",
		Example: "  newscollector items find categories=media processing_status=raw extra_data.source_name=\"Lab Blog\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseAssignments(args)
			if err != nil {
				return err
			}
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				return printItems(cmd.OutOrStdout(), a.Repository().Find(c, query, limit, skip), asJSON)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of items to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newItemsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one item as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				item := a.Repository().GetByID(c, args[0])
				if item == nil {
					return fmt.Errorf("item %s not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newItemsUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "update <id> key=value...",
		Short:   "Update fields of one item",
		Example: "  newscollector items update 6f1c... processing_status=filtered relevance_score=0.9",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				item := a.Repository().Update(c, args[0], fields)
				if item == nil {
					return fmt.Errorf("item %s not found or not updated", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newItemsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := commandTimeout(cmd.Context())
			defer cancel()
			return ctx.withApp(c, func(a *app.Application) error {
				if !a.Repository().Delete(c, args[0]) {
					return fmt.Errorf("item %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printItems(w io.Writer, items []domain.CollectedItem, asJSON bool) error {
	if asJSON {
		return writeJSON(w, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No items")
		return nil
	}
	fmt.Fprintln(w, renderItems(items))
	return nil
}

func renderItems(items []domain.CollectedItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		score := "-"
		if item.RelevanceScore != nil {
			score = strconv.FormatFloat(*item.RelevanceScore, 'f', 2, 64)
		}
		rows = append(rows, []string{
			item.ID,
			item.CollectedAt.Format(timeColumnLayout),
			string(item.SourceType),
			string(item.ProcessingStatus),
			score,
			truncate(item.Title, 60),
		})
	}
	return renderTable(
		[]string{"ID", "Collected", "Type", "Status", "Score", "Title"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
