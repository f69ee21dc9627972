package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"twin/internal/config"
	"twin/internal/constants"
	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/git"
	"twin/internal/hooks"
	"twin/internal/links"
	"twin/internal/logger"
	"twin/internal/registry"
	"twin/internal/types"
	"twin/internal/validation"
)

// EnvironmentOperations runs the environment lifecycle: every create or
// remove either completes or leaves no worktree, branch, link or registry
// entry behind.
type EnvironmentOperations struct {
	projectRoot string
	cfg         *config.Manager
	gitMgr      WorktreeController
	links       LinkProvisioner
	hooks       HookRunner
	store       RegistryStore
	journal     Journal
}

// NewEnvironmentOperations creates a new EnvironmentOperations instance.
// journal may be nil.
func NewEnvironmentOperations(projectRoot string, cfg *config.Manager, gm WorktreeController, lp LinkProvisioner, hr HookRunner, store RegistryStore, journal Journal) *EnvironmentOperations {
	if cfg == nil {
		cfg = config.New()
	}
	return &EnvironmentOperations{
		projectRoot: projectRoot,
		cfg:         cfg,
		gitMgr:      gm,
		links:       lp,
		hooks:       hr,
		store:       store,
		journal:     journal,
	}
}

// ProjectRoot returns the main checkout the operations act on
func (eo *EnvironmentOperations) ProjectRoot() string {
	return eo.projectRoot
}

// CreateRequest contains all parameters for creating an environment
type CreateRequest struct {
	Name   string `json:"name"`
	Branch string `json:"branch,omitempty"`
}

// RemoveRequest contains all parameters for removing an environment
type RemoveRequest struct {
	Name         string `json:"name"`
	Force        bool   `json:"force"`
	DeleteBranch bool   `json:"delete_branch"`
}

// ValidationReport is the result of re-checking an environment on disk
type ValidationReport struct {
	Environment    *types.Environment `json:"environment"`
	WorktreeExists bool               `json:"worktree_exists"`
	InvalidLinks   []types.LinkRecord `json:"invalid_links"`
}

// Healthy reports whether the worktree exists and every link resolves
func (r *ValidationReport) Healthy() bool {
	return r.WorktreeExists && len(r.InvalidLinks) == 0
}

// WorktreeEntry is a git worktree annotated with the environment that owns it
type WorktreeEntry struct {
	git.WorktreeInfo
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Main        bool   `json:"main" yaml:"main"`
}

// CreateEnvironment creates a worktree on a fresh branch, provisions the
// shared files, registers the environment as active and runs the hooks.
// A failure at or after worktree creation unwinds every committed step.
func (eo *EnvironmentOperations) CreateEnvironment(ctx context.Context, req CreateRequest) (*types.Environment, error) {
	if err := validation.EnvironmentName(req.Name); err != nil {
		return nil, err
	}
	if req.Branch != "" {
		if err := validation.BranchName(req.Branch); err != nil {
			return nil, err
		}
	}

	unlock, err := eo.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	if reg.Has(req.Name) {
		return nil, errors.EnvironmentAlreadyExists(req.Name)
	}

	rec := eo.begin(ctx, db.KindCreate, req.Name)
	s := newSaga(rec)

	env, err := eo.create(ctx, reg, req, s, rec)
	rolledBack := false
	if err != nil && s.depth() > 0 {
		err = s.rollback(ctx, err)
		rolledBack = true
	}
	rec.finish(ctx, err, rolledBack)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"environment": env.Name,
		"branch":      env.Branch,
		"path":        env.WorktreePath,
	}).Info("Environment created")
	return env.Clone(), nil
}

// create performs the forward steps. Every committed step is pushed on s;
// the caller rolls s back when an error is returned.
func (eo *EnvironmentOperations) create(ctx context.Context, reg *registry.Registry, req CreateRequest, s *saga, rec *recorder) (*types.Environment, error) {
	settings := eo.cfg.Settings
	log := logger.WithContext(ctx).WithField("environment", req.Name)

	base := req.Branch
	if base == "" {
		base = eo.gitMgr.GenerateBranchName(req.Name)
	}
	branch, err := eo.gitMgr.GenerateUniqueBranchName(ctx, base, constants.MaxBranchAttempts)
	if err != nil {
		rec.step(ctx, "resolve branch", db.PhaseForward, err, nil)
		return nil, err
	}
	path := eo.gitMgr.GenerateWorktreePath(req.Name)
	rec.target(ctx, branch, path)
	if branch != base {
		log.WithFields(logger.Fields{"requested": base, "branch": branch}).Info("Branch name taken, using a unique variant")
	}

	hc := eo.hookContext(req.Name, branch, path)

	results, err := eo.hooks.ExecuteSequence(ctx, hooks.PreCreate, settings.Hooks.PreCreate, hc)
	rec.step(ctx, "pre_create hooks", db.PhaseForward, err, hookDetails(results))
	if err != nil {
		return nil, err
	}

	// From here on state is mutated; the operation runs to completion or to
	// full rollback regardless of ctx.
	ctx = context.WithoutCancel(ctx)

	_, err = eo.gitMgr.AddWorktree(ctx, path, branch, true)
	rec.step(ctx, "create worktree", db.PhaseForward, err, db.JSONB{"path": path, "branch": branch})
	if err != nil {
		// git may fail after it has created the branch or registered the
		// checkout. The branch name was unused before this call, so anything
		// left behind is ours to clean up. A directory git never registered
		// is not touched.
		if exists, _ := eo.gitMgr.BranchExists(ctx, branch); exists {
			s.push("delete branch "+branch, func(ctx context.Context) error {
				return eo.gitMgr.DeleteBranch(ctx, branch, true)
			})
		}
		if eo.worktreeRegistered(ctx, path) {
			s.push("remove worktree "+path, func(ctx context.Context) error {
				return eo.discardWorktree(ctx, path)
			})
		}
		return nil, err
	}
	s.push("delete branch "+branch, func(ctx context.Context) error {
		return eo.gitMgr.DeleteBranch(ctx, branch, true)
	})
	s.push("remove worktree "+path, func(ctx context.Context) error {
		return eo.discardWorktree(ctx, path)
	})

	linkRecords, err := eo.provisionLinks(ctx, path, s)
	rec.step(ctx, "provision links", db.PhaseForward, err, db.JSONB{"links": len(linkRecords)})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	env := &types.Environment{
		Name:         req.Name,
		Branch:       branch,
		WorktreePath: path,
		Links:        linkRecords,
		Status:       types.StatusCreating,
		CreatedAt:    now,
		UpdatedAt:    now,
		ConfigPath:   eo.cfg.ProjectPath,
	}

	previous := reg.ActiveName()
	unregister := func() {
		reg.Remove(req.Name)
		if previous != "" && reg.Has(previous) {
			_ = reg.SetActive(previous)
		}
	}

	if err := reg.Add(env); err != nil {
		rec.step(ctx, "register environment", db.PhaseForward, err, nil)
		return nil, err
	}
	if err := reg.SetActive(req.Name); err != nil {
		unregister()
		rec.step(ctx, "register environment", db.PhaseForward, err, nil)
		return nil, err
	}
	if err := eo.store.Save(reg); err != nil {
		unregister()
		rec.step(ctx, "register environment", db.PhaseForward, err, nil)
		return nil, err
	}
	rec.step(ctx, "register environment", db.PhaseForward, nil, db.JSONB{"previous_active": previous})
	s.push("unregister environment", func(ctx context.Context) error {
		unregister()
		return eo.store.Save(reg)
	})

	results, err = eo.hooks.ExecuteSequence(ctx, hooks.PostCreate, settings.Hooks.PostCreate, hc)
	rec.step(ctx, "post_create hooks", db.PhaseForward, err, hookDetails(results))
	if err != nil {
		return nil, err
	}

	return env, nil
}

// provisionLinks materializes every configured file mapping inside the
// worktree. A mapping whose source is missing is recorded as invalid and
// tolerated; any other failure is returned.
func (eo *EnvironmentOperations) provisionLinks(ctx context.Context, worktreePath string, s *saga) ([]types.LinkRecord, error) {
	var records []types.LinkRecord

	for _, m := range eo.cfg.Settings.Files {
		source := filepath.Join(eo.projectRoot, m.Path)
		target := filepath.Join(worktreePath, m.Path)
		log := logger.WithContext(ctx).WithFields(logger.Fields{
			"source": source,
			"target": target,
		})

		if m.SkipIfExists && eo.links.Inspect(target) != links.StateAbsent {
			log.Debug("Target exists, skipping mapping")
			continue
		}

		if eo.links.Inspect(source) != links.StateValid {
			log.Warn("Shared file source is missing, skipping")
			records = append(records, types.LinkRecord{
				Source:       source,
				Target:       target,
				Kind:         linkKind(m.MappingType, eo.links.SelectStrategy(source, target)),
				Valid:        false,
				ErrorMessage: fmt.Sprintf("source not found: %s", source),
			})
			continue
		}

		var record types.LinkRecord
		var err error
		if m.MappingType == config.MappingCopy {
			record, err = eo.links.CreateCopy(source, target)
		} else {
			record, err = eo.links.CreateLink(source, target)
		}
		if err != nil {
			return records, err
		}

		s.push("remove link "+target, func(ctx context.Context) error {
			return eo.links.RemoveLink(target)
		})
		records = append(records, record)
	}

	return records, nil
}

// RemoveEnvironment removes an environment, its links and its worktree.
// With force, link and worktree removal failures are logged and skipped.
func (eo *EnvironmentOperations) RemoveEnvironment(ctx context.Context, name string, force bool) error {
	return eo.Remove(ctx, RemoveRequest{Name: name, Force: force})
}

// Remove is RemoveEnvironment with every option
func (eo *EnvironmentOperations) Remove(ctx context.Context, req RemoveRequest) error {
	unlock, err := eo.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	reg, err := eo.store.Load()
	if err != nil {
		return err
	}
	env, ok := reg.Get(req.Name)
	if !ok {
		return errors.EnvironmentNotFound(req.Name)
	}

	rec := eo.begin(ctx, db.KindRemove, req.Name)
	rec.target(ctx, env.Branch, env.WorktreePath)

	err = eo.remove(ctx, reg, env, req, rec)
	rec.finish(ctx, err, false)
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"environment": req.Name,
		"force":       req.Force,
	}).Info("Environment removed")
	return nil
}

func (eo *EnvironmentOperations) remove(ctx context.Context, reg *registry.Registry, env *types.Environment, req RemoveRequest, rec *recorder) error {
	settings := eo.cfg.Settings
	log := logger.WithContext(ctx).WithField("environment", env.Name)
	hc := eo.hookContext(env.Name, env.Branch, env.WorktreePath)

	results, err := eo.hooks.ExecuteSequence(ctx, hooks.PreRemove, settings.Hooks.PreRemove, hc)
	rec.step(ctx, "pre_remove hooks", db.PhaseForward, err, hookDetails(results))
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	env.SetStatus(types.StatusRemoving, "")
	if err := eo.store.Save(reg); err != nil {
		rec.step(ctx, "mark removing", db.PhaseForward, err, nil)
		return err
	}

	fail := func(step string, cause error) error {
		env.SetStatus(types.StatusError, cause.Error())
		if err := eo.store.Save(reg); err != nil {
			log.WithError(err).Error("Failed to record environment error status")
		}
		rec.step(ctx, step, db.PhaseForward, cause, nil)
		return cause
	}

	for _, link := range env.Links {
		if err := eo.links.RemoveLink(link.Target); err != nil {
			if !req.Force {
				return fail("remove links", err)
			}
			log.WithError(err).WithField("target", link.Target).Warn("Failed to remove link, continuing")
		}
	}
	rec.step(ctx, "remove links", db.PhaseForward, nil, db.JSONB{"links": len(env.Links)})

	var restored []string
	if _, statErr := os.Stat(env.WorktreePath); statErr == nil {
		restored, err = eo.gitMgr.RestoreTracked(ctx, env.WorktreePath, linkPaths(env))
	}
	if err != nil {
		if !req.Force {
			return fail("restore tracked files", err)
		}
		log.WithError(err).Warn("Failed to restore tracked files, continuing")
	} else if len(restored) > 0 {
		rec.step(ctx, "restore tracked files", db.PhaseForward, nil, db.JSONB{"paths": restored})
	}

	if err := eo.removeWorktree(ctx, env.WorktreePath, req.Force); err != nil {
		return fail("remove worktree", err)
	}
	rec.step(ctx, "remove worktree", db.PhaseForward, nil, db.JSONB{"path": env.WorktreePath})

	reg.Remove(env.Name)
	if err := eo.store.Save(reg); err != nil {
		rec.step(ctx, "unregister environment", db.PhaseForward, err, nil)
		return err
	}
	rec.step(ctx, "unregister environment", db.PhaseForward, nil, nil)

	results, err = eo.hooks.ExecuteSequence(ctx, hooks.PostRemove, settings.Hooks.PostRemove, hc)
	rec.step(ctx, "post_remove hooks", db.PhaseForward, err, hookDetails(results))
	if err != nil {
		log.WithError(err).Warn("Post-remove hook failed")
	}

	if req.DeleteBranch {
		err := eo.gitMgr.DeleteBranch(ctx, env.Branch, req.Force)
		rec.step(ctx, "delete branch", db.PhaseForward, err, db.JSONB{"branch": env.Branch})
		if err != nil {
			log.WithError(err).WithField("branch", env.Branch).Warn("Failed to delete branch")
		}
	} else {
		rec.skipped(ctx, "delete branch", "not requested")
	}

	return nil
}

// linkPaths returns the worktree-relative paths of env's links that lie
// inside its worktree
func linkPaths(env *types.Environment) []string {
	var paths []string
	for _, link := range env.Links {
		rel, err := filepath.Rel(env.WorktreePath, link.Target)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		paths = append(paths, rel)
	}
	return paths
}

// removeWorktree removes the worktree at path. A directory that is already
// gone only needs its git metadata pruned. With force, a failing git remove
// falls back to deleting the directory.
func (eo *EnvironmentOperations) removeWorktree(ctx context.Context, path string, force bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.WithField("path", path).Warn("Worktree directory already gone, pruning")
		if _, err := eo.gitMgr.PruneWorktrees(ctx, false); err != nil {
			logger.WithError(err).Warn("Failed to prune worktrees")
		}
		return nil
	}

	err := eo.gitMgr.RemoveWorktree(ctx, path, force)
	if err == nil {
		return nil
	}
	if !force {
		return err
	}

	logger.WithError(err).WithField("path", path).Warn("Failed to remove worktree, deleting directory")
	return eo.discardWorktree(ctx, path)
}

// discardWorktree removes a worktree unconditionally: git remove --force
// first, then the directory and stale metadata.
func (eo *EnvironmentOperations) discardWorktree(ctx context.Context, path string) error {
	if err := eo.gitMgr.RemoveWorktree(ctx, path, true); err != nil {
		logger.WithError(err).WithField("path", path).Debug("git worktree remove failed, deleting directory")
	}

	if err := os.RemoveAll(path); err != nil {
		return errors.Link(path, "Failed to delete worktree directory", err)
	}
	if _, err := eo.gitMgr.PruneWorktrees(ctx, false); err != nil {
		return err
	}
	return nil
}

func (eo *EnvironmentOperations) worktreeRegistered(ctx context.Context, path string) bool {
	worktrees, err := eo.gitMgr.ListWorktrees(ctx)
	if err != nil {
		return false
	}
	want := samePathKey(path)
	for _, wt := range worktrees {
		if samePathKey(wt.Path) == want {
			return true
		}
	}
	return false
}

// samePathKey normalizes a path for comparison with paths reported by git,
// which resolves symlinks such as /tmp on macOS.
func samePathKey(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// SwitchEnvironment makes name the active environment
func (eo *EnvironmentOperations) SwitchEnvironment(ctx context.Context, name string) (*types.Environment, error) {
	unlock, err := eo.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	if err := reg.SetActive(name); err != nil {
		return nil, err
	}

	rec := eo.begin(ctx, db.KindSwitch, name)
	err = eo.store.Save(reg)
	rec.step(ctx, "set active", db.PhaseForward, err, nil)
	rec.finish(ctx, err, false)
	if err != nil {
		return nil, err
	}

	env, _ := reg.Get(name)
	return env.Clone(), nil
}

// ListEnvironments returns every registered environment sorted by name
func (eo *EnvironmentOperations) ListEnvironments(ctx context.Context) ([]*types.Environment, error) {
	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}

	envs := reg.List()
	out := make([]*types.Environment, len(envs))
	for i, env := range envs {
		out[i] = env.Clone()
	}
	return out, nil
}

// GetEnvironment returns the named environment
func (eo *EnvironmentOperations) GetEnvironment(ctx context.Context, name string) (*types.Environment, error) {
	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	env, ok := reg.Get(name)
	if !ok {
		return nil, errors.EnvironmentNotFound(name)
	}
	return env.Clone(), nil
}

// GetActiveEnvironment returns the active environment, or nil when there is
// none
func (eo *EnvironmentOperations) GetActiveEnvironment(ctx context.Context) (*types.Environment, error) {
	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	return reg.GetActive().Clone(), nil
}

// ValidateEnvironment re-checks the worktree and every link of an
// environment and persists the refreshed link state.
func (eo *EnvironmentOperations) ValidateEnvironment(ctx context.Context, name string) (*ValidationReport, error) {
	unlock, err := eo.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	env, ok := reg.Get(name)
	if !ok {
		return nil, errors.EnvironmentNotFound(name)
	}

	report := &ValidationReport{}
	if info, err := os.Stat(env.WorktreePath); err == nil && info.IsDir() {
		report.WorktreeExists = true
	}

	for i := range env.Links {
		link := &env.Links[i]
		switch eo.links.Inspect(link.Target) {
		case links.StateValid:
			link.Valid = true
			link.ErrorMessage = ""
		case links.StateBroken:
			link.Valid = false
			link.ErrorMessage = "link does not resolve"
		default:
			link.Valid = false
			link.ErrorMessage = "link is missing"
		}
	}
	report.InvalidLinks = env.InvalidLinks()
	env.UpdatedAt = time.Now().UTC()

	rec := eo.begin(ctx, db.KindValidate, name)
	err = eo.store.Save(reg)
	rec.step(ctx, "validate links", db.PhaseForward, err, db.JSONB{
		"invalid_links":   len(report.InvalidLinks),
		"worktree_exists": report.WorktreeExists,
	})
	rec.finish(ctx, err, false)
	if err != nil {
		return nil, err
	}

	report.Environment = env.Clone()
	return report, nil
}

// ListWorktrees lists the repository's git worktrees, annotated with the
// environment registered for each path
func (eo *EnvironmentOperations) ListWorktrees(ctx context.Context) ([]WorktreeEntry, error) {
	worktrees, err := eo.gitMgr.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := eo.store.Load()
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]string, reg.Len())
	for _, env := range reg.List() {
		byPath[samePathKey(env.WorktreePath)] = env.Name
	}

	entries := make([]WorktreeEntry, len(worktrees))
	for i, wt := range worktrees {
		entries[i] = WorktreeEntry{
			WorktreeInfo: wt,
			Environment:  byPath[samePathKey(wt.Path)],
			Main:         i == 0,
		}
	}
	return entries, nil
}

// PruneWorktrees removes git metadata of worktrees whose directory is gone
func (eo *EnvironmentOperations) PruneWorktrees(ctx context.Context, dryRun bool) ([]string, error) {
	return eo.gitMgr.PruneWorktrees(ctx, dryRun)
}

func (eo *EnvironmentOperations) hookContext(name, branch, path string) hooks.Context {
	return hooks.Context{
		AgentName:    name,
		WorktreePath: path,
		Branch:       branch,
		ProjectRoot:  eo.projectRoot,
	}
}

func linkKind(mapping config.MappingType, strategy links.Strategy) types.LinkKind {
	if mapping == config.MappingCopy {
		return types.LinkCopy
	}
	return types.LinkKind(strategy)
}

func hookDetails(results []*hooks.Result) db.JSONB {
	if len(results) == 0 {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"command":     r.Command,
			"exit_code":   r.ExitCode,
			"success":     r.Success,
			"timed_out":   r.TimedOut,
			"duration_ms": r.DurationMs,
		})
	}
	return db.JSONB{"hooks": out}
}
