package operations_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"twin/internal/config"
	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/hooks"
	"twin/internal/links"
	"twin/internal/operations"
	"twin/internal/registry"
	"twin/internal/testutil"
	"twin/internal/types"
)

type fixture struct {
	ops     *operations.EnvironmentOperations
	cfg     *config.Manager
	git     *testutil.MockGitManager
	hooks   *testutil.MockHookRunner
	store   *testutil.FaultyStore
	journal *db.JournalRepository
	project string
	base    string
}

// newFixture builds operations over in-memory git, real links, a real
// registry file and an in-memory journal. hookSetup registers hook
// expectations before the catch-all success.
func newFixture(t *testing.T, hookSetup func(*testutil.MockHookRunner)) *fixture {
	t.Helper()

	root := t.TempDir()
	project := filepath.Join(root, "project")
	base := filepath.Join(root, "workspaces")
	testutil.WriteFile(t, filepath.Join(project, ".env"), "SECRET=1\n")

	hr := testutil.NewMockHookRunner()
	if hookSetup != nil {
		hookSetup(hr)
	}
	hr.SucceedByDefault()

	f := &fixture{
		cfg:     config.New(),
		git:     testutil.NewMockGitManager(project, base),
		hooks:   hr,
		store:   testutil.NewFaultyStore(filepath.Join(root, "twin-registry.json")),
		journal: db.NewJournalRepository(testutil.SetupTestDB(t)),
		project: project,
		base:    base,
	}
	f.cfg.Settings.Files = []config.FileMapping{{Path: ".env"}}
	f.ops = operations.NewEnvironmentOperations(project, f.cfg, f.git,
		links.NewWithStrategy(links.StrategySymlink), hr, f.store, f.journal)
	return f
}

func (f *fixture) registry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := f.store.Load()
	require.NoError(t, err)
	return reg
}

func (f *fixture) create(t *testing.T, name string) *types.Environment {
	t.Helper()
	env, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: name})
	require.NoError(t, err)
	return env
}

func (f *fixture) lastOperation(t *testing.T, name string) *db.Operation {
	t.Helper()
	ctx := context.Background()
	ops, err := f.journal.List(ctx, db.HistoryFilter{Environment: name}, db.DefaultPaginationOptions())
	require.NoError(t, err)
	require.NotEmpty(t, ops)
	op, err := f.journal.Get(ctx, ops[0].ID)
	require.NoError(t, err)
	return op
}

// assertNothingLeft checks that a failed create left no trace of name
func (f *fixture) assertNothingLeft(t *testing.T, name string) {
	t.Helper()
	path := filepath.Join(f.base, name)
	assert.NoDirExists(t, path)
	assert.False(t, f.git.HasWorktree(path), "worktree still registered")
	assert.False(t, f.git.HasBranch("agent/"+name), "branch still exists")
	assert.False(t, f.registry(t).Has(name), "environment still registered")
}

func TestCreateEnvironment(t *testing.T) {
	f := newFixture(t, nil)

	env := f.create(t, "agent-1")

	assert.Equal(t, "agent-1", env.Name)
	assert.Equal(t, "agent/agent-1", env.Branch)
	assert.Equal(t, filepath.Join(f.base, "agent-1"), env.WorktreePath)
	assert.Equal(t, types.StatusActive, env.Status)
	assert.DirExists(t, env.WorktreePath)

	require.Len(t, env.Links, 1)
	link := env.Links[0]
	assert.True(t, link.Valid)
	assert.Equal(t, types.LinkSymlink, link.Kind)
	dest, err := os.Readlink(filepath.Join(env.WorktreePath, ".env"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.project, ".env"), dest)

	reg := f.registry(t)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "agent-1", reg.ActiveName())

	op := f.lastOperation(t, "agent-1")
	assert.Equal(t, db.KindCreate, op.Kind)
	assert.Equal(t, db.OperationSucceeded, op.Status)
	assert.Equal(t, "agent/agent-1", op.Branch)
	assert.NotNil(t, op.FinishedAt)

	f.hooks.AssertCalled(t, "ExecuteSequence", mock.Anything, hooks.PreCreate, mock.Anything, mock.Anything)
	f.hooks.AssertCalled(t, "ExecuteSequence", mock.Anything, hooks.PostCreate, mock.Anything, mock.Anything)
}

func TestCreateEnvironmentAlreadyExists(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "agent-1")

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrEnvironmentAlreadyExists))

	assert.Equal(t, 1, f.registry(t).Len())
	assert.Len(t, f.git.GetCalls("AddWorktree"), 1)
}

func TestCreateEnvironmentDemotesPreviousActive(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "agent-1")
	f.create(t, "agent-2")

	reg := f.registry(t)
	assert.Equal(t, "agent-2", reg.ActiveName())
	first, ok := reg.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, types.StatusInactive, first.Status)
}

func TestCreateEnvironmentBranchSelection(t *testing.T) {
	t.Run("taken branch gets a numbered suffix", func(t *testing.T) {
		f := newFixture(t, nil)
		f.git.AddBranch("agent/agent-1")

		env := f.create(t, "agent-1")
		assert.Equal(t, "agent/agent-1-1", env.Branch)
	})

	t.Run("explicit branch is used", func(t *testing.T) {
		f := newFixture(t, nil)

		env, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{
			Name:   "agent-1",
			Branch: "feature/login",
		})
		require.NoError(t, err)
		assert.Equal(t, "feature/login", env.Branch)
	})
}

func TestCreateEnvironmentRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  operations.CreateRequest
	}{
		{name: "empty name", req: operations.CreateRequest{}},
		{name: "name with space", req: operations.CreateRequest{Name: "agent 1"}},
		{name: "bad branch", req: operations.CreateRequest{Name: "agent-1", Branch: "feature..x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.ops.CreateEnvironment(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidInput))
			assert.Empty(t, f.git.GetCalls("AddWorktree"))
		})
	}
}

func TestCreateEnvironmentToleratesMissingSource(t *testing.T) {
	f := newFixture(t, nil)
	f.cfg.Settings.Files = append(f.cfg.Settings.Files, config.FileMapping{Path: "missing.txt"})

	env := f.create(t, "agent-1")

	require.Len(t, env.Links, 2)
	assert.True(t, env.Links[0].Valid)
	assert.False(t, env.Links[1].Valid)
	assert.Contains(t, env.Links[1].ErrorMessage, "source not found")
	assert.NoFileExists(t, filepath.Join(env.WorktreePath, "missing.txt"))
}

func TestCreateEnvironmentCopyMapping(t *testing.T) {
	f := newFixture(t, nil)
	f.cfg.Settings.Files = []config.FileMapping{{Path: ".env", MappingType: config.MappingCopy}}

	env := f.create(t, "agent-1")

	require.Len(t, env.Links, 1)
	assert.Equal(t, types.LinkCopy, env.Links[0].Kind)
	target := filepath.Join(env.WorktreePath, ".env")
	info, err := os.Lstat(target)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

// Every failure at or after worktree creation must leave the repository and
// the registry as they were.
func TestCreateEnvironmentIsAtomic(t *testing.T) {
	tests := []struct {
		name     string
		hooks    func(*testutil.MockHookRunner)
		setup    func(*testing.T, *fixture)
		wantCode errors.ErrorCode
	}{
		{
			name: "worktree add fails",
			setup: func(t *testing.T, f *fixture) {
				f.git.SetError("AddWorktree", errors.VcsOperation("worktree add", "fatal: boom", nil))
			},
			wantCode: errors.ErrVcsOperation,
		},
		{
			name: "worktree add fails after creating the branch",
			setup: func(t *testing.T, f *fixture) {
				f.git.FailAfterAdd = errors.VcsOperation("worktree add", "fatal: checkout failed", nil)
			},
			wantCode: errors.ErrVcsOperation,
		},
		{
			name: "link creation fails",
			setup: func(t *testing.T, f *fixture) {
				// The mock worktree holds a .git file, so nothing can be
				// created beneath it.
				testutil.WriteFile(t, filepath.Join(f.project, ".git", "config"), "")
				f.cfg.Settings.Files = append(f.cfg.Settings.Files, config.FileMapping{Path: ".git/config"})
			},
			wantCode: errors.ErrLink,
		},
		{
			name: "registry save fails",
			setup: func(t *testing.T, f *fixture) {
				f.store.FailSave(1, os.ErrPermission)
			},
			wantCode: errors.ErrPersistence,
		},
		{
			name: "post-create hook fails",
			hooks: func(h *testutil.MockHookRunner) {
				h.OnPhase(hooks.PostCreate, errors.Hook(string(hooks.PostCreate), "false", 1, false, ""))
			},
			wantCode: errors.ErrHook,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.hooks)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			env, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
			require.Error(t, err)
			assert.Nil(t, env)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
			assert.False(t, errors.HasCode(err, errors.ErrRollback), "rollback should be complete: %v", err)

			f.assertNothingLeft(t, "agent-1")
			assert.Equal(t, 0, f.registry(t).Len())
		})
	}
}

func TestCreateEnvironmentPreCreateHookFailureChangesNothing(t *testing.T) {
	f := newFixture(t, func(h *testutil.MockHookRunner) {
		h.OnPhase(hooks.PreCreate, errors.Hook(string(hooks.PreCreate), "false", 1, false, ""))
	})

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHook))

	assert.Empty(t, f.git.GetCalls("AddWorktree"))
	f.hooks.AssertNotCalled(t, "ExecuteSequence", mock.Anything, hooks.PostCreate, mock.Anything, mock.Anything)

	op := f.lastOperation(t, "agent-1")
	assert.Equal(t, db.OperationFailed, op.Status)
}

func TestCreateEnvironmentFailureRestoresPreviousActive(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "agent-1")
	// agent-1 used the first save
	f.store.FailSave(2, os.ErrPermission)

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-2"})
	require.Error(t, err)

	reg := f.registry(t)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "agent-1", reg.ActiveName())
	first, _ := reg.Get("agent-1")
	assert.Equal(t, types.StatusActive, first.Status)
	f.assertNothingLeft(t, "agent-2")
}

func TestCreateEnvironmentJournalsRollback(t *testing.T) {
	f := newFixture(t, func(h *testutil.MockHookRunner) {
		h.OnPhase(hooks.PostCreate, errors.Hook(string(hooks.PostCreate), "false", 1, false, ""))
	})

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.Error(t, err)

	op := f.lastOperation(t, "agent-1")
	assert.Equal(t, db.OperationRolledBack, op.Status)
	assert.NotEmpty(t, op.Error)

	path := filepath.Join(f.base, "agent-1")
	var forward, compensate []string
	for _, s := range op.Steps {
		switch s.Phase {
		case db.PhaseForward:
			forward = append(forward, s.Name)
		case db.PhaseCompensate:
			compensate = append(compensate, s.Name)
			assert.Equal(t, db.StepOK, s.Status, s.Name)
		}
	}

	assert.Equal(t, []string{
		"pre_create hooks",
		"create worktree",
		"provision links",
		"register environment",
		"post_create hooks",
	}, forward)
	assert.Equal(t, []string{
		"unregister environment",
		"remove link " + filepath.Join(path, ".env"),
		"remove worktree " + path,
		"delete branch agent/agent-1",
	}, compensate)
}

func TestCreateEnvironmentIncompleteRollback(t *testing.T) {
	f := newFixture(t, func(h *testutil.MockHookRunner) {
		h.OnPhase(hooks.PostCreate, errors.Hook(string(hooks.PostCreate), "false", 1, false, ""))
	})
	f.git.SetError("DeleteBranch", errors.VcsOperation("branch", "fatal: cannot lock ref", nil))

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.Error(t, err)

	assert.Equal(t, errors.ErrRollback, errors.GetCode(err))
	assert.True(t, errors.HasCode(err, errors.ErrHook), "cause should stay reachable")

	te, ok := errors.As(err)
	require.True(t, ok)
	failed, ok := te.Context["failed_compensations"].([]string)
	require.True(t, ok)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "delete branch agent/agent-1")

	// The other compensations still ran.
	assert.NoDirExists(t, filepath.Join(f.base, "agent-1"))
	assert.Equal(t, 0, f.registry(t).Len())
}

func TestCreateEnvironmentLockFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailLock(errors.Lock(f.store.LockPath(), context.DeadlineExceeded))

	_, err := f.ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrLock))
	assert.Empty(t, f.git.GetCalls("AddWorktree"))
}

func TestRemoveEnvironment(t *testing.T) {
	f := newFixture(t, nil)
	env := f.create(t, "agent-1")

	// A link that is already gone is not a failure.
	require.NoError(t, os.Remove(filepath.Join(env.WorktreePath, ".env")))

	err := f.ops.RemoveEnvironment(context.Background(), "agent-1", false)
	require.NoError(t, err)

	assert.NoDirExists(t, env.WorktreePath)
	assert.False(t, f.git.HasWorktree(env.WorktreePath))
	assert.True(t, f.git.HasBranch(env.Branch), "branch is kept unless requested")

	reg := f.registry(t)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, "", reg.ActiveName())

	op := f.lastOperation(t, "agent-1")
	assert.Equal(t, db.KindRemove, op.Kind)
	assert.Equal(t, db.OperationSucceeded, op.Status)
	last := op.Steps[len(op.Steps)-1]
	assert.Equal(t, "delete branch", last.Name)
	assert.Equal(t, db.StepSkipped, last.Status)
}

func TestRemoveEnvironmentDeletesBranch(t *testing.T) {
	f := newFixture(t, nil)
	env := f.create(t, "agent-1")

	err := f.ops.Remove(context.Background(), operations.RemoveRequest{Name: "agent-1", DeleteBranch: true})
	require.NoError(t, err)
	assert.False(t, f.git.HasBranch(env.Branch))
}

func TestRemoveEnvironmentNotFound(t *testing.T) {
	f := newFixture(t, nil)

	err := f.ops.RemoveEnvironment(context.Background(), "ghost", false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrEnvironmentNotFound))
}

func TestRemoveEnvironmentWorktreeAlreadyGone(t *testing.T) {
	f := newFixture(t, nil)
	env := f.create(t, "agent-1")
	require.NoError(t, os.RemoveAll(env.WorktreePath))

	err := f.ops.RemoveEnvironment(context.Background(), "agent-1", false)
	require.NoError(t, err)

	assert.NotEmpty(t, f.git.GetCalls("PruneWorktrees"))
	assert.Empty(t, f.git.GetCalls("RestoreTracked"))
	assert.False(t, f.git.HasWorktree(env.WorktreePath))
	assert.Equal(t, 0, f.registry(t).Len())
}

func TestRemoveEnvironmentRestoreFailure(t *testing.T) {
	t.Run("without force the entry is kept in error state", func(t *testing.T) {
		f := newFixture(t, nil)
		env := f.create(t, "agent-1")
		f.git.SetError("RestoreTracked", errors.VcsOperation("checkout", "pathspec did not match", nil))

		err := f.ops.RemoveEnvironment(context.Background(), "agent-1", false)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrVcsOperation))

		got, ok := f.registry(t).Get("agent-1")
		require.True(t, ok)
		assert.Equal(t, types.StatusError, got.Status)
		assert.DirExists(t, env.WorktreePath)
		assert.Empty(t, f.git.GetCalls("RemoveWorktree"))
	})

	t.Run("with force removal continues", func(t *testing.T) {
		f := newFixture(t, nil)
		env := f.create(t, "agent-1")
		f.git.SetError("RestoreTracked", errors.VcsOperation("checkout", "pathspec did not match", nil))

		require.NoError(t, f.ops.RemoveEnvironment(context.Background(), "agent-1", true))
		assert.NoDirExists(t, env.WorktreePath)
		assert.Equal(t, 0, f.registry(t).Len())
	})
}

func TestRemoveEnvironmentWorktreeFailure(t *testing.T) {
	t.Run("without force the entry is kept in error state", func(t *testing.T) {
		f := newFixture(t, nil)
		env := f.create(t, "agent-1")
		f.git.SetError("RemoveWorktree", errors.VcsOperation("worktree remove", "contains modified files", nil))

		err := f.ops.RemoveEnvironment(context.Background(), "agent-1", false)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrVcsOperation))

		got, ok := f.registry(t).Get("agent-1")
		require.True(t, ok)
		assert.Equal(t, types.StatusError, got.Status)
		assert.Contains(t, got.StatusReason, "modified files")
		assert.DirExists(t, env.WorktreePath)

		op := f.lastOperation(t, "agent-1")
		assert.Equal(t, db.OperationFailed, op.Status)
	})

	t.Run("with force the directory is deleted", func(t *testing.T) {
		f := newFixture(t, nil)
		env := f.create(t, "agent-1")
		f.git.SetError("RemoveWorktree", errors.VcsOperation("worktree remove", "contains modified files", nil))

		err := f.ops.RemoveEnvironment(context.Background(), "agent-1", true)
		require.NoError(t, err)

		assert.NoDirExists(t, env.WorktreePath)
		assert.False(t, f.git.HasWorktree(env.WorktreePath))
		assert.Equal(t, 0, f.registry(t).Len())
	})
}

func TestRemoveEnvironmentHooks(t *testing.T) {
	t.Run("pre-remove failure aborts", func(t *testing.T) {
		f := newFixture(t, func(h *testutil.MockHookRunner) {
			h.OnPhase(hooks.PreRemove, errors.Hook(string(hooks.PreRemove), "false", 1, false, ""))
		})
		env := f.create(t, "agent-1")

		err := f.ops.RemoveEnvironment(context.Background(), "agent-1", true)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrHook))

		got, ok := f.registry(t).Get("agent-1")
		require.True(t, ok)
		assert.Equal(t, types.StatusActive, got.Status)
		assert.DirExists(t, env.WorktreePath)
	})

	t.Run("post-remove failure is tolerated", func(t *testing.T) {
		f := newFixture(t, func(h *testutil.MockHookRunner) {
			h.OnPhase(hooks.PostRemove, errors.Hook(string(hooks.PostRemove), "false", 1, false, ""))
		})
		env := f.create(t, "agent-1")

		err := f.ops.RemoveEnvironment(context.Background(), "agent-1", false)
		require.NoError(t, err)
		assert.NoDirExists(t, env.WorktreePath)
		assert.Equal(t, 0, f.registry(t).Len())
	})
}

func TestSwitchEnvironment(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "agent-1")
	f.create(t, "agent-2")

	env, err := f.ops.SwitchEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, env.Status)

	reg := f.registry(t)
	assert.Equal(t, "agent-1", reg.ActiveName())
	second, _ := reg.Get("agent-2")
	assert.Equal(t, types.StatusInactive, second.Status)

	active, err := f.ops.GetActiveEnvironment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent-1", active.Name)

	_, err = f.ops.SwitchEnvironment(context.Background(), "ghost")
	assert.True(t, errors.HasCode(err, errors.ErrEnvironmentNotFound))
}

func TestListAndGetEnvironments(t *testing.T) {
	f := newFixture(t, nil)

	active, err := f.ops.GetActiveEnvironment(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)

	f.create(t, "beta")
	f.create(t, "alpha")

	envs, err := f.ops.ListEnvironments(context.Background())
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "alpha", envs[0].Name)
	assert.Equal(t, "beta", envs[1].Name)

	// Returned values are copies.
	envs[0].Status = types.StatusError
	got, err := f.ops.GetEnvironment(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)

	_, err = f.ops.GetEnvironment(context.Background(), "ghost")
	assert.True(t, errors.HasCode(err, errors.ErrEnvironmentNotFound))
}

func TestValidateEnvironment(t *testing.T) {
	f := newFixture(t, nil)
	env := f.create(t, "agent-1")
	target := filepath.Join(env.WorktreePath, ".env")

	report, err := f.ops.ValidateEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, report.Healthy())

	require.NoError(t, os.Remove(target))
	report, err = f.ops.ValidateEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, report.Healthy())
	require.Len(t, report.InvalidLinks, 1)
	assert.Equal(t, "link is missing", report.InvalidLinks[0].ErrorMessage)

	require.NoError(t, os.Symlink(filepath.Join(f.project, "gone"), target))
	report, err = f.ops.ValidateEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, report.InvalidLinks, 1)
	assert.Equal(t, "link does not resolve", report.InvalidLinks[0].ErrorMessage)

	// The refreshed state is persisted.
	got, _ := f.registry(t).Get("agent-1")
	assert.False(t, got.Links[0].Valid)

	require.NoError(t, os.RemoveAll(env.WorktreePath))
	report, err = f.ops.ValidateEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, report.WorktreeExists)

	op := f.lastOperation(t, "agent-1")
	assert.Equal(t, db.KindValidate, op.Kind)
}

func TestListWorktrees(t *testing.T) {
	f := newFixture(t, nil)
	env := f.create(t, "agent-1")

	entries, err := f.ops.ListWorktrees(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Main)
	assert.Equal(t, f.project, entries[0].Path)
	assert.Empty(t, entries[0].Environment)

	assert.False(t, entries[1].Main)
	assert.Equal(t, env.WorktreePath, entries[1].Path)
	assert.Equal(t, "agent-1", entries[1].Environment)
}

func TestOperationsWithoutJournal(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(project, 0755))

	gm := testutil.NewMockGitManager(project, filepath.Join(root, "workspaces"))
	ops := operations.NewEnvironmentOperations(project, nil, gm, links.New(),
		testutil.NewMockHookRunner().SucceedByDefault(),
		registry.NewStore(filepath.Join(root, "twin-registry.json"), 0), nil)

	env, err := ops.CreateEnvironment(context.Background(), operations.CreateRequest{Name: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, env.Status)
	require.NoError(t, ops.RemoveEnvironment(context.Background(), "agent-1", false))
}
