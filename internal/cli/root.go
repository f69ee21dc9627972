package cli

import (
	"github.com/spf13/cobra"

	"twin/internal/cli/commands"
	"twin/internal/logger"
)

// createRootCommand creates the root command with global flags
func createRootCommand(opts *commands.GlobalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "twin",
		Short: "Isolated git worktree environments with shared files and hooks",
		Long: `twin creates short-lived development environments, typically one per coding
agent, on top of git worktree. Every environment gets its own checkout and
branch, the project's shared files linked or copied in, and user-defined
hooks run around creation and removal. A failed command leaves nothing behind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case opts.Debug:
				logger.SetLevel("debug")
			case opts.Verbose:
				logger.SetLevel("info")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to showing help if no subcommand
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Project configuration file (default: searched upward from the current directory)")
	flags.BoolVar(&opts.DryRun, "dry-run-hooks", false, "Log hook commands instead of running them")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log progress")
	flags.BoolVar(&opts.Debug, "debug", false, "Log debug output")

	return rootCmd
}
