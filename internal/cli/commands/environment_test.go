package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/cli"
	"twin/internal/cli/commands"
	"twin/internal/config"
	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/hooks"
	"twin/internal/lazy"
	"twin/internal/links"
	"twin/internal/operations"
	"twin/internal/registry"
	"twin/internal/testutil"
	"twin/internal/types"
)

type harness struct {
	ws  *commands.Workspace
	git *testutil.MockGitManager
}

func newHarness(t *testing.T, journal bool, hookSetup func(*testutil.MockHookRunner)) *harness {
	t.Helper()

	root := t.TempDir()
	project := filepath.Join(root, "project")
	testutil.WriteFile(t, filepath.Join(project, ".env"), "A=1\n")

	hr := testutil.NewMockHookRunner()
	if hookSetup != nil {
		hookSetup(hr)
	}
	hr.SucceedByDefault()

	cfg := config.New()
	cfg.Settings.Files = []config.FileMapping{{Path: ".env", MappingType: config.MappingSymlink}}

	gm := testutil.NewMockGitManager(project, filepath.Join(root, "workspaces"))
	store := registry.NewStore(filepath.Join(root, "twin-registry.json"), 0)

	ws := &commands.Workspace{Config: cfg}
	var j operations.Journal
	if journal {
		database := testutil.SetupTestDB(t)
		repo := db.NewJournalRepository(database)
		ws.DB = database
		ws.Journal = repo
		j = repo
	}
	ws.Envs = operations.NewEnvironmentOperations(project, cfg, gm, links.NewWithStrategy(links.StrategySymlink), hr, store, j)

	return &harness{ws: ws, git: gm}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	m := cli.New(nil, lazy.Value(h.ws), "test")
	var out bytes.Buffer
	m.Root().SetOut(&out)
	m.Root().SetErr(&out)

	err := m.ExecuteWithContext(context.Background(), args)
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestEnvironmentLifecycleCommands(t *testing.T) {
	h := newHarness(t, true, nil)

	out := h.mustRun(t, "create", "agent-1")
	assert.Contains(t, out, "Created environment agent-1")
	assert.Contains(t, out, "Branch: agent/agent-1")
	assert.Contains(t, out, "Links:  1")

	h.mustRun(t, "add", "agent-2", "feature/two")

	out = h.mustRun(t, "list", "--format", "json")
	var envs []types.Environment
	require.NoError(t, json.Unmarshal([]byte(out), &envs))
	require.Len(t, envs, 2)
	assert.Equal(t, "agent-1", envs[0].Name)
	assert.Equal(t, "feature/two", envs[1].Branch)

	out = h.mustRun(t, "ls", "-f", "simple")
	assert.Equal(t, "agent-1\nagent-2\n", out)

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `\*\s+agent-2\s+active`, out)

	out = h.mustRun(t, "show")
	assert.Contains(t, out, "Environment: agent-2")
	assert.Contains(t, out, ".env ->")

	out = h.mustRun(t, "switch", "agent-1")
	assert.Contains(t, out, "Switched to agent-1")

	out = h.mustRun(t, "show", "agent-1", "-f", "yaml")
	assert.Contains(t, out, "name: agent-1")
	assert.Contains(t, out, "status: active")

	out = h.mustRun(t, "remove", "agent-1", "--delete-branch")
	assert.Contains(t, out, "Removed environment agent-1")
	assert.False(t, h.git.HasBranch("agent/agent-1"))

	out = h.mustRun(t, "rm", "agent-2")
	assert.Contains(t, out, "Removed environment agent-2")
	assert.True(t, h.git.HasBranch("feature/two"))

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "No environments")
}

func TestCreatePrintsPath(t *testing.T) {
	h := newHarness(t, false, nil)

	out := h.mustRun(t, "create", "agent-1", "--print-path")
	env, err := h.ws.Envs.GetEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, env.WorktreePath+"\n", out)

	out = h.mustRun(t, "create", "agent-2", "--cd-command")
	assert.True(t, strings.HasPrefix(out, `cd "`), out)
	assert.Contains(t, out, "agent-2")

	out = h.mustRun(t, "switch", "agent-1", "--print-path")
	assert.Equal(t, env.WorktreePath+"\n", out)

	_, err = h.run(t, "create", "agent-3", "--print-path", "--cd-command")
	assert.Error(t, err)
}

func TestCreateRejectsConflictingBranches(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.run(t, "create", "agent-1", "one", "--branch", "two")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))

	out := h.mustRun(t, "create", "agent-1", "same", "--branch", "same")
	assert.Contains(t, out, "Branch: same")
}

func TestCreateFailureIsReportedWithTip(t *testing.T) {
	h := newHarness(t, false, func(hr *testutil.MockHookRunner) {
		hr.OnPhase(hooks.PostCreate, errors.Hook(string(hooks.PostCreate), "npm install", 1, false, "boom"))
	})

	_, err := h.run(t, "create", "agent-1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHook))

	handled := commands.HandleError(err)
	assert.Contains(t, handled.Error(), "Tip:")
	assert.Contains(t, handled.Error(), "continue_on_error")

	out := h.mustRun(t, "list", "-f", "simple")
	assert.Empty(t, out)
}

func TestListRejectsUnknownFormat(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.run(t, "list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))
}

func TestShowWithoutActiveEnvironment(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.run(t, "show")
	require.Error(t, err)
	assert.Equal(t, errors.ErrEnvironmentNotFound, errors.GetCode(err))

	_, err = h.run(t, "show", "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrEnvironmentNotFound, errors.GetCode(err))
}

func TestValidateCommand(t *testing.T) {
	h := newHarness(t, false, nil)
	h.mustRun(t, "create", "agent-1")
	h.mustRun(t, "create", "agent-2")

	out := h.mustRun(t, "validate")
	assert.Contains(t, out, "✓ agent-1")
	assert.Contains(t, out, "✓ agent-2")

	env, err := h.ws.Envs.GetEnvironment(context.Background(), "agent-2")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.WorktreePath, ".env")))

	out, err = h.run(t, "validate")
	require.Error(t, err)
	assert.Equal(t, errors.ErrLink, errors.GetCode(err))
	assert.Contains(t, out, "✓ agent-1")
	assert.Contains(t, out, "✗ agent-2")
	assert.Contains(t, out, "link is missing")

	out = h.mustRun(t, "validate", "agent-1")
	assert.Equal(t, "✓ agent-1\n", out)
}

func TestWorktreesAndPrune(t *testing.T) {
	h := newHarness(t, false, nil)
	h.mustRun(t, "create", "agent-1")
	h.mustRun(t, "create", "agent-2")

	out := h.mustRun(t, "worktrees")
	assert.Contains(t, out, "(main)")
	assert.Regexp(t, `agent/agent-1\s+0000000\s+agent-1`, out)

	out = h.mustRun(t, "prune")
	assert.Equal(t, "Nothing to prune\n", out)

	env, err := h.ws.Envs.GetEnvironment(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(env.WorktreePath))

	out = h.mustRun(t, "prune", "--dry-run")
	assert.Contains(t, out, "Would prune:")
	assert.Contains(t, out, "Removing worktrees/agent-1")
	assert.True(t, h.git.HasWorktree(env.WorktreePath))

	out = h.mustRun(t, "prune")
	assert.Contains(t, out, "Pruned:")
	assert.False(t, h.git.HasWorktree(env.WorktreePath))
}

func TestWorktreesJSON(t *testing.T) {
	h := newHarness(t, false, nil)
	h.mustRun(t, "create", "agent-1")

	out := h.mustRun(t, "worktrees", "-f", "json")
	var entries []operations.WorktreeEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Main)
	assert.Equal(t, "agent-1", entries[1].Environment)
}
