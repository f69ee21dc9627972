package links

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/errors"
	"twin/internal/types"
)

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" && probeStrategy() != StrategySymlink {
		t.Skip("symlinks not permitted")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCreateLinkSymlink(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "project", ".env")
	target := filepath.Join(dir, "ws", "nested", ".env")
	writeFile(t, source, "A=1")

	m := NewWithStrategy(StrategySymlink)
	record, err := m.CreateLink(source, target)
	require.NoError(t, err)

	assert.True(t, record.Valid)
	assert.Equal(t, types.LinkSymlink, record.Kind)
	assert.Empty(t, record.ErrorMessage)

	resolved, err := os.Readlink(target)
	require.NoError(t, err)
	assert.Equal(t, source, resolved)
	assert.True(t, m.ValidateLink(target))
}

func TestCreateLinkIsIdempotent(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "src.txt")
	target := filepath.Join(dir, "ws", "src.txt")
	writeFile(t, source, "new")
	writeFile(t, target, "stale")

	m := NewWithStrategy(StrategySymlink)
	_, err := m.CreateLink(source, target)
	require.NoError(t, err)
	_, err = m.CreateLink(source, target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCreateLinkMissingSourceLeavesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ws", "keep.txt")
	writeFile(t, target, "keep")

	m := NewWithStrategy(StrategySymlink)
	record, err := m.CreateLink(filepath.Join(dir, "missing"), target)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrLink))
	assert.False(t, record.Valid)
	assert.NotEmpty(t, record.ErrorMessage)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestCreateCopyFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(source, []byte("#!/bin/sh"), 0755))
	target := filepath.Join(dir, "ws", "script.sh")

	m := NewWithStrategy(StrategySymlink)
	record, err := m.CreateCopy(source, target)
	require.NoError(t, err)
	assert.Equal(t, types.LinkCopy, record.Kind)

	info, err := os.Lstat(target)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink, "copy must not be a symlink")
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}

	// The copy is independent of the source.
	require.NoError(t, os.WriteFile(source, []byte("changed"), 0755))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh", string(data))
}

func TestCreateCopyDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "config")
	writeFile(t, filepath.Join(source, "a.json"), "{}")
	writeFile(t, filepath.Join(source, "sub", "b.json"), "[]")
	target := filepath.Join(dir, "ws", "config")

	m := NewWithStrategy(StrategyCopy)
	record, err := m.CreateLink(source, target)
	require.NoError(t, err)
	assert.Equal(t, types.LinkCopy, record.Kind)

	assert.FileExists(t, filepath.Join(target, "a.json"))
	assert.FileExists(t, filepath.Join(target, "sub", "b.json"))
	assert.True(t, m.ValidateLink(target))

	require.NoError(t, m.RemoveLink(target))
	assert.NoDirExists(t, target)
}

func TestRemoveLinkAbsentIsNoop(t *testing.T) {
	m := NewWithStrategy(StrategySymlink)
	assert.NoError(t, m.RemoveLink(filepath.Join(t.TempDir(), "nothing", "here")))
}

func TestRemoveLinkLeavesSource(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "shared")
	writeFile(t, filepath.Join(source, "file"), "x")
	target := filepath.Join(dir, "ws", "shared")

	m := NewWithStrategy(StrategySymlink)
	_, err := m.CreateLink(source, target)
	require.NoError(t, err)

	require.NoError(t, m.RemoveLink(target))
	assert.Equal(t, StateAbsent, m.Inspect(target))
	assert.FileExists(t, filepath.Join(source, "file"))
}

func TestInspectDistinguishesBrokenFromAbsent(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "src")
	target := filepath.Join(dir, "link")
	writeFile(t, source, "x")

	m := NewWithStrategy(StrategySymlink)
	assert.Equal(t, StateAbsent, m.Inspect(target))
	assert.False(t, m.ValidateLink(target))

	_, err := m.CreateLink(source, target)
	require.NoError(t, err)
	assert.Equal(t, StateValid, m.Inspect(target))

	require.NoError(t, os.Remove(source))
	assert.Equal(t, StateBroken, m.Inspect(target))
	assert.False(t, m.ValidateLink(target))
}

func TestSelectStrategyIsFixed(t *testing.T) {
	m := NewWithStrategy(StrategyCopy)
	assert.Equal(t, StrategyCopy, m.SelectStrategy("a", "b"))
	assert.Equal(t, StrategyCopy, m.SelectStrategy("c", "d"))

	probed := New()
	assert.Equal(t, probed.SelectStrategy("", ""), probed.SelectStrategy("x", "y"))
}

func TestManualInstructions(t *testing.T) {
	m := NewWithStrategy(StrategySymlink)
	msg := m.ManualInstructions("/src/.env", "/ws/.env")
	assert.Contains(t, msg, "/src/.env")
	assert.Contains(t, msg, "/ws/.env")
}

func TestCopyTreePreservesInnerSymlinks(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(source, "real.txt"), "x")
	require.NoError(t, os.Symlink("real.txt", filepath.Join(source, "alias.txt")))

	target := filepath.Join(dir, "copy")
	m := NewWithStrategy(StrategyCopy)
	_, err := m.CreateLink(source, target)
	require.NoError(t, err)

	link, err := os.Readlink(filepath.Join(target, "alias.txt"))
	require.NoError(t, err)
	assert.Equal(t, "real.txt", link)
}
