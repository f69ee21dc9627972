package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/errors"
)

// inTempProject runs the test from an empty directory with a private
// global configuration directory
func inTempProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestConfigInit(t *testing.T) {
	dir := inTempProject(t)
	h := newHarness(t, false, nil)

	out := h.mustRun(t, "config", "init")
	path := filepath.Join(dir, "twin.toml")
	assert.Equal(t, "Wrote "+path+"\n", out)
	assert.FileExists(t, path)

	_, err := h.run(t, "config", "init")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))

	h.mustRun(t, "config", "init", "--force")

	h.mustRun(t, "config", "init", "custom.yaml")
	data, err := os.ReadFile(filepath.Join(dir, "custom.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "branch_prefix: agent")
}

func TestConfigShowAndPath(t *testing.T) {
	dir := inTempProject(t)
	h := newHarness(t, false, nil)

	out := h.mustRun(t, "config", "path")
	assert.Contains(t, out, "project: (none)")

	h.mustRun(t, "config", "init")
	path := filepath.Join(dir, "twin.toml")

	out = h.mustRun(t, "config", "path")
	assert.Contains(t, out, "project: "+path)

	out = h.mustRun(t, "config", "show")
	assert.Contains(t, out, "# project: "+path)
	assert.Contains(t, out, "branch_prefix")
	assert.Contains(t, out, "[[files]]")

	out = h.mustRun(t, "config", "show", "--format", "yaml")
	assert.Contains(t, out, "worktree_base: ../workspaces")

	_, err := h.run(t, "config", "show", "--format", "ini")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))
}

func TestConfigShowExplicitPath(t *testing.T) {
	dir := inTempProject(t)
	h := newHarness(t, false, nil)

	custom := filepath.Join(dir, "elsewhere", "twin.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(custom), 0755))
	require.NoError(t, os.WriteFile(custom, []byte("branch_prefix = \"bot\"\n"), 0644))

	out := h.mustRun(t, "--config", custom, "config", "show", "-f", "yaml")
	assert.Contains(t, out, "branch_prefix: bot")

	_, err := h.run(t, "--config", filepath.Join(dir, "missing.toml"), "config", "show")
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigNotFound, errors.GetCode(err))
}

func TestConfigInitGlobal(t *testing.T) {
	inTempProject(t)
	h := newHarness(t, false, nil)

	out := h.mustRun(t, "config", "init", "--global")
	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "twin", "config.toml")
	assert.Equal(t, "Wrote "+path+"\n", out)
	assert.FileExists(t, path)

	_, err := h.run(t, "config", "init", "--global")
	require.Error(t, err)

	_, err = h.run(t, "config", "init", "--global", "x.toml")
	require.Error(t, err)
}
