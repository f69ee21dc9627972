package git

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	configpkg "twin/internal/config"
	"twin/internal/constants"
	"twin/internal/errors"
	"twin/internal/logger"
)

// Manager wraps git worktree and branch operations for one repository
type Manager struct {
	repoPath     string
	worktreeBase string
	branchPrefix string
	now          func() time.Time
}

// New creates a new Git manager rooted at repoPath. Worktree paths are
// derived under the configured worktree base, resolved against repoPath.
func New(repoPath string, cfg *configpkg.Settings) (*Manager, error) {
	if cfg == nil {
		cfg = configpkg.New().Settings
	}

	base, err := cfg.ResolveWorktreeBase(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve worktree base: %w", err)
	}

	return &Manager{
		repoPath:     repoPath,
		worktreeBase: base,
		branchPrefix: cfg.BranchPrefix,
		now:          time.Now,
	}, nil
}

// FindProjectRoot resolves the main checkout of the repository containing
// dir. From inside a linked worktree it still returns the main checkout,
// since that is where the registry and shared files live.
func FindProjectRoot(ctx context.Context, dir string) (string, error) {
	commonDir, err := runGit(ctx, dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	commonDir = strings.TrimSpace(commonDir)
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(dir, commonDir)
	}
	commonDir = filepath.Clean(commonDir)

	if filepath.Base(commonDir) == ".git" {
		return filepath.Dir(commonDir), nil
	}

	top, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(top), nil
}

// CommonDir returns the absolute path of the repository's shared git
// directory, which is the same for the main checkout and every worktree.
func (m *Manager) CommonDir(ctx context.Context) (string, error) {
	out, err := m.git(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.repoPath, dir)
	}
	return filepath.Clean(dir), nil
}

// AddWorktree creates a worktree at path. With createNew a new branch is
// created from HEAD; otherwise an existing branch is checked out.
func (m *Manager) AddWorktree(ctx context.Context, path, branch string, createNew bool) (*WorktreeInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if entries, err := os.ReadDir(absPath); err == nil && len(entries) > 0 {
		return nil, errors.VcsOperation("worktree add",
			fmt.Sprintf("'%s' already exists and is not empty", absPath), nil).
			WithContext("path", absPath)
	}

	args := []string{"worktree", "add"}
	if createNew {
		args = append(args, "-b", branch, absPath)
	} else {
		args = append(args, absPath, branch)
	}

	if _, err := m.git(ctx, args...); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"path":   absPath,
		"branch": branch,
		"new":    createNew,
	}).Info("Worktree added")

	worktrees, err := m.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}
	if wt := findWorktree(worktrees, absPath); wt != nil {
		return wt, nil
	}
	return &WorktreeInfo{Path: absPath, Branch: branch, AgentName: m.AgentName(branch)}, nil
}

// RemoveWorktree removes the worktree at path. Without force git refuses
// to remove a worktree with uncommitted or untracked changes.
func (m *Manager) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := m.git(ctx, args...); err != nil {
		return err
	}

	logger.WithField("path", path).Info("Worktree removed")
	return nil
}

// ListWorktrees returns every worktree git knows about, the main checkout first
func (m *Manager) ListWorktrees(ctx context.Context) ([]WorktreeInfo, error) {
	out, err := m.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseWorktreeList(out, m.branchPrefix), nil
}

// PruneWorktrees drops administrative data for worktrees whose directory
// has gone, returning git's report of what was (or would be) pruned.
func (m *Manager) PruneWorktrees(ctx context.Context, dryRun bool) ([]string, error) {
	args := []string{"worktree", "prune", "--verbose"}
	if dryRun {
		args = append(args, "--dry-run")
	}

	out, err := m.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			pruned = append(pruned, line)
		}
	}
	return pruned, nil
}

// BranchExists reports whether refs/heads/<name> exists. The ref is read
// with go-git; git itself is consulted when go-git cannot open the
// repository (for example with an unsupported repository extension).
func (m *Manager) BranchExists(ctx context.Context, name string) (bool, error) {
	repo, err := git.PlainOpenWithOptions(m.repoPath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err == nil {
		_, refErr := repo.Reference(plumbing.NewBranchReferenceName(name), false)
		switch {
		case refErr == nil:
			return true, nil
		case stderrors.Is(refErr, plumbing.ErrReferenceNotFound):
			return false, nil
		default:
			logger.WithError(refErr).WithField("branch", name).Debug("go-git ref lookup failed, falling back to git")
		}
	} else {
		logger.WithError(err).Debug("go-git could not open repository, falling back to git")
	}

	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, errors.VcsOperation("show-ref", "", err)
	}
	return true, nil
}

// DeleteBranch deletes a local branch; force deletes it even when unmerged
func (m *Manager) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := m.git(ctx, "branch", flag, name); err != nil {
		return err
	}
	logger.WithField("branch", name).Info("Branch deleted")
	return nil
}

// RestoreTracked checks out, inside the worktree at worktreePath, every
// path in paths that git tracks. Untracked paths are ignored. It returns the
// paths that were restored.
func (m *Manager) RestoreTracked(ctx context.Context, worktreePath string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	out, err := runGit(ctx, worktreePath, append([]string{"ls-files", "--"}, paths...)...)
	if err != nil {
		return nil, err
	}

	var tracked []string
	for _, p := range paths {
		prefix := filepath.ToSlash(p)
		for _, line := range strings.Split(out, "\n") {
			if line == prefix || strings.HasPrefix(line, prefix+"/") {
				tracked = append(tracked, p)
				break
			}
		}
	}
	if len(tracked) == 0 {
		return nil, nil
	}

	if _, err := runGit(ctx, worktreePath, append([]string{"checkout", "--"}, tracked...)...); err != nil {
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"worktree": worktreePath,
		"paths":    strings.Join(tracked, ", "),
	}).Debug("Restored tracked paths")
	return tracked, nil
}

// GenerateUniqueBranchName returns base if it is free, else the first free
// base-1..base-maxAttempts, else base-<timestamp>. It fails only when the
// timestamped name is taken too.
func (m *Manager) GenerateUniqueBranchName(ctx context.Context, base string, maxAttempts int) (string, error) {
	exists := func(name string) (bool, error) {
		return m.BranchExists(ctx, name)
	}
	return uniqueBranchName(base, maxAttempts, exists, m.now())
}

func uniqueBranchName(base string, maxAttempts int, exists func(string) (bool, error), now time.Time) (string, error) {
	candidates := make([]string, 0, maxAttempts+2)
	candidates = append(candidates, base)
	for i := 1; i <= maxAttempts; i++ {
		candidates = append(candidates, fmt.Sprintf("%s-%d", base, i))
	}
	candidates = append(candidates, fmt.Sprintf("%s-%s", base, now.Format(constants.BranchTimestampLayout)))

	for _, name := range candidates {
		taken, err := exists(name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}

	return "", errors.NewWithDetails(errors.ErrVcsOperation, "Failed to generate unique branch name",
		fmt.Sprintf("Base: %s", base))
}

// GenerateWorktreePath returns the checkout directory for an environment
func (m *Manager) GenerateWorktreePath(name string) string {
	return filepath.Join(m.worktreeBase, name)
}

// GenerateBranchName returns the default branch for an environment
func (m *Manager) GenerateBranchName(name string) string {
	if m.branchPrefix == "" {
		return name
	}
	return m.branchPrefix + "/" + name
}

// AgentName extracts the environment name from a generated branch name,
// or "" when branch does not carry the configured prefix.
func (m *Manager) AgentName(branch string) string {
	return agentName(branch, m.branchPrefix)
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, m.repoPath, args...)
}

// runGit runs git in dir and returns stdout. On failure the error carries
// git's stderr verbatim.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.WithFields(logger.Fields{
		"dir":  dir,
		"args": strings.Join(args, " "),
	}).Debug("Executing git")

	if err := cmd.Run(); err != nil {
		return "", errors.VcsOperation(operationName(args), stderr.String(), err)
	}
	return stdout.String(), nil
}

func operationName(args []string) string {
	if len(args) >= 2 && !strings.HasPrefix(args[1], "-") {
		return args[0] + " " + args[1]
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func findWorktree(worktrees []WorktreeInfo, path string) *WorktreeInfo {
	want := canonicalPath(path)
	for i := range worktrees {
		if canonicalPath(worktrees[i].Path) == want {
			return &worktrees[i]
		}
	}
	return nil
}

func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
