package operations

import (
	"context"

	"twin/internal/config"
	"twin/internal/db"
	"twin/internal/git"
	"twin/internal/hooks"
	"twin/internal/links"
	"twin/internal/registry"
)

// WorktreeController defines the git operations used by operations
type WorktreeController interface {
	// Worktree operations
	AddWorktree(ctx context.Context, path, branch string, createNew bool) (*git.WorktreeInfo, error)
	RemoveWorktree(ctx context.Context, path string, force bool) error
	ListWorktrees(ctx context.Context) ([]git.WorktreeInfo, error)
	PruneWorktrees(ctx context.Context, dryRun bool) ([]string, error)
	RestoreTracked(ctx context.Context, worktreePath string, paths []string) ([]string, error)

	// Branch operations
	BranchExists(ctx context.Context, name string) (bool, error)
	DeleteBranch(ctx context.Context, name string, force bool) error
	GenerateUniqueBranchName(ctx context.Context, base string, maxAttempts int) (string, error)

	// Naming
	GenerateWorktreePath(name string) string
	GenerateBranchName(name string) string
}

// LinkProvisioner materializes shared files in a worktree
type LinkProvisioner interface {
	links.Provisioner
}

// HookRunner runs lifecycle hooks
type HookRunner interface {
	ExecuteSequence(ctx context.Context, phase hooks.Phase, specs []config.HookCommand, hc hooks.Context) ([]*hooks.Result, error)
}

// RegistryStore loads, saves and locks the registry document
type RegistryStore interface {
	Load() (*registry.Registry, error)
	Save(reg *registry.Registry) error
	Lock(ctx context.Context) (func(), error)
}

// Journal records operations and their saga steps
type Journal interface {
	Start(ctx context.Context, op *db.Operation) error
	SetTarget(ctx context.Context, id, branch, worktreePath string) error
	RecordStep(ctx context.Context, step *db.OperationStep) error
	Finish(ctx context.Context, id string, status db.OperationStatus, errMsg string) error
}
