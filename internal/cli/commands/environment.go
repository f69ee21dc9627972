package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"twin/internal/errors"
	"twin/internal/logger"
	"twin/internal/operations"
	"twin/internal/types"
)

// EnvironmentCommands creates the environment lifecycle commands
func EnvironmentCommands(ws WorkspaceLoader) []*cobra.Command {
	commands := []*cobra.Command{}

	// twin create <name> [branch]
	createCmd := &cobra.Command{
		Use:     "create <name> [branch]",
		Short:   "Create an environment on a new worktree",
		Aliases: []string{"add"},
		Long: `Create an environment: a git worktree on its own branch with the
project's shared files linked in and the create hooks run.

Without a branch, "<prefix>/<name>" is used, numbered if it already exists.
Any failure undoes everything the command did.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			if len(args) == 2 {
				if branch != "" && branch != args[1] {
					return errors.InvalidInput(args[1], "a single branch, given either as argument or --branch")
				}
				branch = args[1]
			}
			printPath, _ := cmd.Flags().GetBool("print-path")
			cdCommand, _ := cmd.Flags().GetBool("cd-command")

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}

			env, err := w.Envs.CreateEnvironment(cmd.Context(), operations.CreateRequest{
				Name:   args[0],
				Branch: branch,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case printPath:
				fmt.Fprintln(out, env.WorktreePath)
			case cdCommand:
				fmt.Fprintf(out, "cd %q\n", env.WorktreePath)
			default:
				fmt.Fprintf(out, "Created environment %s\n", env.Name)
				fmt.Fprintf(out, "  Branch: %s\n", env.Branch)
				fmt.Fprintf(out, "  Path:   %s\n", env.WorktreePath)
				fmt.Fprintf(out, "  Links:  %s\n", linkSummary(env))
			}
			return nil
		},
	}
	createCmd.Flags().StringP("branch", "b", "", "Branch to create (defaults to <prefix>/<name>)")
	createCmd.Flags().Bool("print-path", false, "Print only the worktree path")
	createCmd.Flags().Bool("cd-command", false, "Print a cd command for the worktree")
	createCmd.MarkFlagsMutuallyExclusive("print-path", "cd-command")
	commands = append(commands, createCmd)

	// twin list
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List environments",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format, FormatTable, FormatJSON, FormatYAML, FormatSimple); err != nil {
				return err
			}

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}
			envs, err := w.Envs.ListEnvironments(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list environments: %w", err)
			}
			return printEnvironments(cmd.OutOrStdout(), format, envs)
		},
	}
	listCmd.Flags().StringP("format", "f", FormatTable, "Output format (table, json, yaml, simple)")
	commands = append(commands, listCmd)

	// twin remove <name>
	removeCmd := &cobra.Command{
		Use:     "remove <name>",
		Short:   "Remove an environment and its worktree",
		Aliases: []string{"rm", "delete"},
		Long: `Remove an environment: run the remove hooks, delete its links and worktree
and unregister it. The branch is kept unless --delete-branch is given.

Without --force a worktree with local changes is kept and the environment is
marked as errored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			deleteBranch, _ := cmd.Flags().GetBool("delete-branch")

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}

			err = w.Envs.Remove(cmd.Context(), operations.RemoveRequest{
				Name:         args[0],
				Force:        force,
				DeleteBranch: deleteBranch,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed environment %s\n", args[0])
			return nil
		},
	}
	removeCmd.Flags().BoolP("force", "f", false, "Remove the worktree even if it has local changes")
	removeCmd.Flags().BoolP("delete-branch", "D", false, "Also delete the environment's branch")
	commands = append(commands, removeCmd)

	// twin switch <name>
	switchCmd := &cobra.Command{
		Use:     "switch <name>",
		Short:   "Make an environment the active one",
		Aliases: []string{"use"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printPath, _ := cmd.Flags().GetBool("print-path")

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}
			env, err := w.Envs.SwitchEnvironment(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if printPath {
				fmt.Fprintln(cmd.OutOrStdout(), env.WorktreePath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s (%s)\n", env.Name, env.WorktreePath)
			}
			return nil
		},
	}
	switchCmd.Flags().Bool("print-path", false, "Print only the worktree path")
	commands = append(commands, switchCmd)

	// twin show [name]
	showCmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show an environment (the active one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format, FormatTable, FormatJSON, FormatYAML); err != nil {
				return err
			}

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}

			var env *types.Environment
			if len(args) == 1 {
				env, err = w.Envs.GetEnvironment(cmd.Context(), args[0])
			} else {
				env, err = w.Envs.GetActiveEnvironment(cmd.Context())
				if err == nil && env == nil {
					err = errors.NewWithDetails(errors.ErrEnvironmentNotFound, "No active environment",
						"Pass a name or run 'twin switch <name>'")
				}
			}
			if err != nil {
				return err
			}

			if format != FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, env)
			}
			printEnvironment(cmd.OutOrStdout(), env)
			return nil
		},
	}
	showCmd.Flags().StringP("format", "f", FormatTable, "Output format (table, json, yaml)")
	commands = append(commands, showCmd)

	// twin validate [name]
	validateCmd := &cobra.Command{
		Use:   "validate [name]",
		Short: "Re-check worktrees and links (all environments by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				envs, err := w.Envs.ListEnvironments(cmd.Context())
				if err != nil {
					return err
				}
				for _, env := range envs {
					names = append(names, env.Name)
				}
			}

			out := cmd.OutOrStdout()
			unhealthy := 0
			for _, name := range names {
				report, err := w.Envs.ValidateEnvironment(cmd.Context(), name)
				if err != nil {
					return err
				}
				if report.Healthy() {
					fmt.Fprintf(out, "✓ %s\n", name)
					continue
				}

				unhealthy++
				fmt.Fprintf(out, "✗ %s\n", name)
				if !report.WorktreeExists {
					fmt.Fprintf(out, "    worktree missing: %s\n", report.Environment.WorktreePath)
				}
				for _, l := range report.InvalidLinks {
					fmt.Fprintf(out, "    %s: %s\n", l.Target, l.ErrorMessage)
				}
			}

			if unhealthy > 0 {
				return errors.NewWithDetails(errors.ErrLink, "Validation failed",
					fmt.Sprintf("%d of %d environments need attention", unhealthy, len(names)))
			}
			return nil
		},
	}
	commands = append(commands, validateCmd)

	// twin worktrees
	worktreesCmd := &cobra.Command{
		Use:   "worktrees",
		Short: "List the repository's git worktrees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := checkFormat(format, FormatTable, FormatJSON, FormatYAML); err != nil {
				return err
			}

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := w.Envs.ListWorktrees(cmd.Context())
			if err != nil {
				return err
			}
			if format != FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tBRANCH\tCOMMIT\tENVIRONMENT")
			for _, e := range entries {
				env := e.Environment
				switch {
				case e.Main:
					env = "(main)"
				case env == "":
					env = "-"
				}
				branch := e.Branch
				if branch == "" {
					branch = "(detached)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Path, branch, shortCommit(e.Commit), env)
			}
			return tw.Flush()
		},
	}
	worktreesCmd.Flags().StringP("format", "f", FormatTable, "Output format (table, json, yaml)")
	commands = append(commands, worktreesCmd)

	// twin prune
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop git metadata of worktrees whose directory is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}
			pruned, err := w.Envs.PruneWorktrees(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(pruned) == 0 {
				fmt.Fprintln(out, "Nothing to prune")
				return nil
			}
			if dryRun {
				fmt.Fprintln(out, "Would prune:")
			} else {
				fmt.Fprintln(out, "Pruned:")
			}
			for _, line := range pruned {
				fmt.Fprintf(out, "  %s\n", line)
			}
			logger.WithField("count", len(pruned)).Info("Pruned worktree metadata")
			return nil
		},
	}
	pruneCmd.Flags().BoolP("dry-run", "n", false, "Only report what would be pruned")
	commands = append(commands, pruneCmd)

	return commands
}

func shortCommit(commit string) string {
	commit = strings.TrimSpace(commit)
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
