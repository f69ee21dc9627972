package cli

import (
	"context"

	"github.com/spf13/cobra"

	"twin/internal/cli/commands"
)

// Manager handles CLI operations
type Manager struct {
	opts      *commands.GlobalOptions
	workspace commands.WorkspaceLoader
	version   string
	rootCmd   *cobra.Command
}

// New creates a new CLI manager. The workspace is opened on first use by a
// command, so opts is already filled from the parsed flags by then.
func New(opts *commands.GlobalOptions, workspace commands.WorkspaceLoader, version string) *Manager {
	if opts == nil {
		opts = &commands.GlobalOptions{}
	}

	m := &Manager{
		opts:      opts,
		workspace: workspace,
		version:   version,
	}

	// Use the root command from root.go
	m.rootCmd = createRootCommand(opts)
	m.rootCmd.Version = version
	m.setupCommands()

	return m
}

// Root returns the root command
func (m *Manager) Root() *cobra.Command {
	return m.rootCmd
}

// Execute executes the CLI with the given arguments
func (m *Manager) Execute(args []string) error {
	return m.ExecuteWithContext(context.Background(), args)
}

// ExecuteWithContext executes the CLI with the given arguments and context
func (m *Manager) ExecuteWithContext(ctx context.Context, args []string) error {
	m.rootCmd.SetArgs(args)
	return m.rootCmd.ExecuteContext(ctx)
}

// setupCommands sets up all CLI commands
func (m *Manager) setupCommands() {
	// Environment lifecycle commands live at the top level
	for _, cmd := range commands.EnvironmentCommands(m.workspace) {
		m.rootCmd.AddCommand(cmd)
	}

	// Add operation journal commands
	historyCmd := &cobra.Command{
		Use:     "history",
		Short:   "Operation journal commands",
		Aliases: []string{"hist"},
	}
	for _, cmd := range commands.HistoryCommands(m.workspace) {
		historyCmd.AddCommand(cmd)
	}
	m.rootCmd.AddCommand(historyCmd)

	// Add configuration commands
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Configuration management commands",
		Aliases: []string{"cfg"},
	}
	for _, cmd := range commands.ConfigCommands(m.opts) {
		configCmd.AddCommand(cmd)
	}
	m.rootCmd.AddCommand(configCmd)

	m.rootCmd.AddCommand(commands.ServeCommand(m.workspace, m.version))
}
