package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"twin/internal/constants"
	"twin/internal/db"
	"twin/internal/errors"
)

// HistoryCommands creates the operation journal commands
func HistoryCommands(ws WorkspaceLoader) []*cobra.Command {
	commands := []*cobra.Command{}

	// twin history list [environment]
	listCmd := &cobra.Command{
		Use:     "list [environment]",
		Short:   "List recorded operations, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")
			status, _ := cmd.Flags().GetString("status")
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format, FormatTable, FormatJSON, FormatYAML); err != nil {
				return err
			}

			journal, err := openJournal(cmd, ws)
			if err != nil {
				return err
			}

			filter := db.HistoryFilter{
				Kind:   db.OperationKind(kind),
				Status: db.OperationStatus(status),
			}
			if len(args) == 1 {
				filter.Environment = args[0]
			}
			page := db.DefaultPaginationOptions()
			page.PageSize = limit
			if err := page.Validate(); err != nil {
				return errors.InvalidInput(fmt.Sprintf("--limit %d", limit),
					fmt.Sprintf("between 1 and %d", constants.MaxHistoryLimit))
			}

			ops, err := journal.List(cmd.Context(), filter, page)
			if err != nil {
				return err
			}
			if format != FormatTable {
				if ops == nil {
					ops = []db.Operation{}
				}
				return writeStructured(cmd.OutOrStdout(), format, ops)
			}
			return printOperations(cmd.OutOrStdout(), ops)
		},
	}
	listCmd.Flags().IntP("limit", "l", constants.DefaultHistoryLimit, "Maximum number of operations")
	listCmd.Flags().String("kind", "", "Only operations of this kind (create, remove, switch, validate)")
	listCmd.Flags().String("status", "", "Only operations with this status (running, succeeded, failed, rolled_back)")
	listCmd.Flags().StringP("format", "f", FormatTable, "Output format (table, json, yaml)")
	commands = append(commands, listCmd)

	// twin history show <id>
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an operation with its steps and compensations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format, FormatTable, FormatJSON, FormatYAML); err != nil {
				return err
			}

			journal, err := openJournal(cmd, ws)
			if err != nil {
				return err
			}
			op, err := journal.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format != FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, op)
			}
			return printOperation(cmd.OutOrStdout(), op)
		},
	}
	showCmd.Flags().StringP("format", "f", FormatTable, "Output format (table, json, yaml)")
	commands = append(commands, showCmd)

	// twin history prune
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished operations older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return errors.InvalidInput(olderThan.String(), "a positive duration")
			}

			journal, err := openJournal(cmd, ws)
			if err != nil {
				return err
			}
			n, err := journal.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d operations\n", n)
			return nil
		},
	}
	pruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Age of the operations to delete")
	commands = append(commands, pruneCmd)

	return commands
}

func openJournal(cmd *cobra.Command, ws WorkspaceLoader) (Journal, error) {
	w, err := ws.Get(cmd.Context())
	if err != nil {
		return nil, err
	}
	if w.Journal == nil {
		return nil, errors.NewWithDetails(errors.ErrConfigValidation, "Operation journal is disabled",
			"Set [journal] enabled = true to record operations")
	}
	return w.Journal, nil
}

func printOperations(w io.Writer, ops []db.Operation) error {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tENVIRONMENT\tSTATUS\tSTARTED\tDURATION")
	for _, op := range ops {
		duration := "-"
		if op.FinishedAt != nil {
			duration = op.Duration().Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.ID,
			op.Kind,
			op.Environment,
			op.Status,
			op.StartedAt.Local().Format(time.DateTime),
			duration,
		)
	}
	return tw.Flush()
}

func printOperation(w io.Writer, op *db.Operation) error {
	fmt.Fprintf(w, "Operation:   %s\n", op.ID)
	fmt.Fprintf(w, "Kind:        %s\n", op.Kind)
	fmt.Fprintf(w, "Environment: %s\n", op.Environment)
	if op.Branch != "" {
		fmt.Fprintf(w, "Branch:      %s\n", op.Branch)
	}
	if op.WorktreePath != "" {
		fmt.Fprintf(w, "Path:        %s\n", op.WorktreePath)
	}
	fmt.Fprintf(w, "Status:      %s\n", op.Status)
	if op.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", op.Error)
	}
	fmt.Fprintf(w, "Started:     %s\n", op.StartedAt.Local().Format(time.DateTime))

	if len(op.Steps) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPHASE\tSTEP\tSTATUS\tERROR")
	for _, s := range op.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Seq, s.Phase, s.Name, s.Status, s.Error)
	}
	return tw.Flush()
}
