package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"twin/internal/config"
	"twin/internal/errors"
)

// ConfigCommands creates configuration management commands
func ConfigCommands(opts *GlobalOptions) []*cobra.Command {
	commands := []*cobra.Command{}

	// twin config init [path]
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an example project configuration",
		Long: `Write an example configuration. The project file defaults to twin.toml in
the current directory; a .yaml or .yml path writes YAML instead. With --global
the user configuration is written with default settings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, _ := cmd.Flags().GetBool("global")
			force, _ := cmd.Flags().GetBool("force")

			if global {
				if len(args) > 0 {
					return errors.InvalidInput(args[0], "no path with --global")
				}
				return initGlobalConfig(cmd, force)
			}

			path := "twin.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if !filepath.IsAbs(path) {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current directory: %w", err)
				}
				path = filepath.Join(cwd, path)
			}

			if err := config.InitProjectConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("global", false, "Write the user configuration instead")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	commands = append(commands, initCmd)

	// twin config show
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			data, err := cfg.Settings.Marshal(format)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.ProjectPath != "" {
				fmt.Fprintf(out, "# project: %s\n", cfg.ProjectPath)
			}
			_, err = out.Write(data)
			return err
		},
	}
	showCmd.Flags().StringP("format", "f", "toml", "Output format (toml, yaml)")
	commands = append(commands, showCmd)

	// twin config path
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show where configuration is read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			project := cfg.ProjectPath
			if project == "" {
				project = "(none)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "global:  %s\n", cfg.GlobalPath)
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", project)
			return nil
		},
	}
	commands = append(commands, pathCmd)

	return commands
}

// loadConfig loads the configuration the way the workspace does, without
// requiring a git repository
func loadConfig(opts *GlobalOptions) (*config.Manager, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg := config.New()
	if err := cfg.Load(cwd, opts.ConfigPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initGlobalConfig(cmd *cobra.Command, force bool) error {
	path, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewWithDetails(errors.ErrInvalidInput, "Config file already exists",
			fmt.Sprintf("%s (use --force to overwrite)", path))
	}

	if err := config.SaveGlobalConfig(config.New().Settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
