package commands

import (
	"context"
	"time"

	"twin/internal/config"
	"twin/internal/db"
	"twin/internal/lazy"
	"twin/internal/server"
)

// EnvironmentService is the orchestrator as seen by the commands
type EnvironmentService interface {
	server.EnvironmentService
	PruneWorktrees(ctx context.Context, dryRun bool) ([]string, error)
}

// Journal reads and trims the operation journal
type Journal interface {
	server.History
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Workspace is everything a command needs to act on the current repository
type Workspace struct {
	Config *config.Manager
	Envs   EnvironmentService

	// Journal and DB are nil when the journal is disabled
	Journal Journal
	DB      *db.DB
}

// WorkspaceLoader opens the workspace on first use, after flags are parsed
type WorkspaceLoader = *lazy.Lazy[*Workspace]

// GlobalOptions are the persistent flags of the root command
type GlobalOptions struct {
	ConfigPath string
	DryRun     bool
	Verbose    bool
	Debug      bool
}
