package app

import (
	"context"
	"fmt"
	"os"

	"twin/internal/cli"
	"twin/internal/cli/commands"
	"twin/internal/config"
	"twin/internal/db"
	"twin/internal/git"
	"twin/internal/hooks"
	"twin/internal/lazy"
	"twin/internal/links"
	"twin/internal/logger"
	"twin/internal/operations"
	"twin/internal/registry"
)

// Version is stamped at build time with -ldflags "-X twin/internal/app.Version=..."
var Version = "dev"

// App represents the main application
type App struct {
	Options   *commands.GlobalOptions
	Workspace commands.WorkspaceLoader
	CLI       *cli.Manager

	// Set once the workspace has been opened
	Config *config.Manager
	Git    *git.Manager
	DB     *db.DB
}

// New creates a new application instance
func New() *App {
	a := &App{Options: &commands.GlobalOptions{}}
	a.Workspace = lazy.New(a.openWorkspace)
	a.CLI = cli.New(a.Options, a.Workspace, Version)
	return a
}

// Run starts the application
func (a *App) Run(args []string) error {
	return a.RunWithContext(context.Background(), args)
}

// RunWithContext starts the application with a context for cancellation
func (a *App) RunWithContext(ctx context.Context, args []string) error {
	defer a.Close()

	// Show help if no arguments provided
	if len(args) == 0 {
		return a.CLI.ExecuteWithContext(ctx, []string{"--help"})
	}

	return commands.HandleError(a.CLI.ExecuteWithContext(ctx, args))
}

// Close releases the journal database if it was opened
func (a *App) Close() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close journal database")
	}
	a.DB = nil
}

// openWorkspace wires the components for the repository containing the
// working directory. It runs after flag parsing, on the first command that
// needs it.
func (a *App) openWorkspace(ctx context.Context) (*commands.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	projectRoot, err := git.FindProjectRoot(ctx, cwd)
	if err != nil {
		return nil, err
	}

	cfg := config.New()
	if err := cfg.Load(cwd, a.Options.ConfigPath); err != nil {
		return nil, err
	}
	a.Config = cfg

	gm, err := git.New(projectRoot, cfg.Settings)
	if err != nil {
		return nil, err
	}
	a.Git = gm

	commonDir, err := gm.CommonDir(ctx)
	if err != nil {
		return nil, err
	}
	store := registry.NewStore(registry.PathFor(commonDir), cfg.Settings.LockTimeout())

	ws := &commands.Workspace{Config: cfg}

	var journal operations.Journal
	if cfg.Settings.JournalEnabled() {
		database, err := openJournal(cfg.Settings)
		if err != nil {
			// The journal is an audit trail; lifecycle commands still work without it
			logger.WithError(err).Warn("Operation journal unavailable")
		} else {
			repo := db.NewJournalRepository(database)
			a.DB = database
			ws.DB = database
			ws.Journal = repo
			journal = repo
		}
	}

	ws.Envs = operations.NewEnvironmentOperations(
		projectRoot,
		cfg,
		gm,
		links.New(),
		hooks.NewRunner(a.Options.DryRun),
		store,
		journal,
	)

	logger.WithFields(logger.Fields{
		"project":  projectRoot,
		"config":   cfg.ProjectPath,
		"registry": store.Path(),
		"journal":  journal != nil,
	}).Debug("Workspace opened")

	return ws, nil
}

func openJournal(s *config.Settings) (*db.DB, error) {
	dbConfig := db.DefaultConfig()
	if s.Journal.Path != "" {
		path, err := config.ExpandPath(s.Journal.Path)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = path
	}

	database, err := db.New(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}
