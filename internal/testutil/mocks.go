package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"twin/internal/config"
	"twin/internal/errors"
	"twin/internal/git"
	"twin/internal/hooks"
	"twin/internal/registry"
)

// MockGitManager is an in-memory WorktreeController. Worktrees are real
// directories under the worktree base so link provisioning can run against
// them; branches and worktree metadata live in maps.
type MockGitManager struct {
	mu           sync.RWMutex
	calls        map[string][]interface{}
	errors       map[string]error
	branches     map[string]bool
	worktrees    map[string]string // path -> branch
	mainPath     string
	worktreeBase string
	branchPrefix string

	// FailAfterAdd makes AddWorktree create the branch and the checkout and
	// then return this error, like git failing late.
	FailAfterAdd error
}

// NewMockGitManager creates a mock whose main checkout is mainPath and
// whose environments live under worktreeBase. The branch "main" exists.
func NewMockGitManager(mainPath, worktreeBase string) *MockGitManager {
	return &MockGitManager{
		calls:        make(map[string][]interface{}),
		errors:       make(map[string]error),
		branches:     map[string]bool{"main": true},
		worktrees:    make(map[string]string),
		mainPath:     mainPath,
		worktreeBase: worktreeBase,
		branchPrefix: "agent",
	}
}

// SetError sets an error to be returned for a specific method
func (m *MockGitManager) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// GetCalls returns the recorded arguments of every call to method
func (m *MockGitManager) GetCalls(method string) []interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// AddBranch makes a branch exist
func (m *MockGitManager) AddBranch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[name] = true
}

// HasBranch reports whether a branch exists
func (m *MockGitManager) HasBranch(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.branches[name]
}

// HasWorktree reports whether a worktree is registered at path
func (m *MockGitManager) HasWorktree(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.worktrees[path]
	return ok
}

// recordCall records a method call
func (m *MockGitManager) recordCall(method string, args ...interface{}) {
	m.calls[method] = append(m.calls[method], args)
}

// checkError checks if an error should be returned for a method
func (m *MockGitManager) checkError(method string) error {
	return m.errors[method]
}

// AddWorktree registers a worktree and creates its directory
func (m *MockGitManager) AddWorktree(ctx context.Context, path, branch string, createNew bool) (*git.WorktreeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("AddWorktree", path, branch, createNew)

	if err := m.checkError("AddWorktree"); err != nil {
		return nil, err
	}
	if entries, err := os.ReadDir(path); err == nil && len(entries) > 0 {
		return nil, errors.VcsOperation("worktree add", fmt.Sprintf("'%s' already exists", path), nil)
	}
	if createNew && m.branches[branch] {
		return nil, errors.VcsOperation("worktree add", fmt.Sprintf("a branch named '%s' already exists", branch), nil)
	}
	if !createNew && !m.branches[branch] {
		return nil, errors.VcsOperation("worktree add", fmt.Sprintf("invalid reference: %s", branch), nil)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(path, ".git"), []byte("gitdir: "+path), 0644); err != nil {
		return nil, err
	}
	m.branches[branch] = true
	m.worktrees[path] = branch

	if m.FailAfterAdd != nil {
		return nil, m.FailAfterAdd
	}
	return &git.WorktreeInfo{Path: path, Branch: branch, Commit: "0000000"}, nil
}

// RemoveWorktree deletes the worktree directory and its registration
func (m *MockGitManager) RemoveWorktree(ctx context.Context, path string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("RemoveWorktree", path, force)

	if err := m.checkError("RemoveWorktree"); err != nil {
		return err
	}
	if _, ok := m.worktrees[path]; !ok {
		return errors.VcsOperation("worktree remove", fmt.Sprintf("'%s' is not a working tree", path), nil)
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	delete(m.worktrees, path)
	return nil
}

// ListWorktrees returns the main checkout followed by every worktree
func (m *MockGitManager) ListWorktrees(ctx context.Context) ([]git.WorktreeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("ListWorktrees")

	if err := m.checkError("ListWorktrees"); err != nil {
		return nil, err
	}

	list := []git.WorktreeInfo{{Path: m.mainPath, Branch: "main"}}
	paths := make([]string, 0, len(m.worktrees))
	for p := range m.worktrees {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		branch := m.worktrees[p]
		agent, _ := strings.CutPrefix(branch, m.branchPrefix+"/")
		list = append(list, git.WorktreeInfo{Path: p, Branch: branch, Commit: "0000000", AgentName: agent})
	}
	return list, nil
}

// PruneWorktrees drops registrations whose directory is gone
func (m *MockGitManager) PruneWorktrees(ctx context.Context, dryRun bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("PruneWorktrees", dryRun)

	if err := m.checkError("PruneWorktrees"); err != nil {
		return nil, err
	}

	var pruned []string
	for p := range m.worktrees {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			pruned = append(pruned, "Removing worktrees/"+filepath.Base(p))
			if !dryRun {
				delete(m.worktrees, p)
			}
		}
	}
	return pruned, nil
}

// RestoreTracked records the call. The mock tracks no files.
func (m *MockGitManager) RestoreTracked(ctx context.Context, worktreePath string, paths []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("RestoreTracked", worktreePath, paths)

	if err := m.checkError("RestoreTracked"); err != nil {
		return nil, err
	}
	return nil, nil
}

// BranchExists reports whether the branch exists
func (m *MockGitManager) BranchExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("BranchExists", name)

	if err := m.checkError("BranchExists"); err != nil {
		return false, err
	}
	return m.branches[name], nil
}

// DeleteBranch deletes a branch that no worktree has checked out
func (m *MockGitManager) DeleteBranch(ctx context.Context, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("DeleteBranch", name, force)

	if err := m.checkError("DeleteBranch"); err != nil {
		return err
	}
	if !m.branches[name] {
		return errors.VcsOperation("branch", fmt.Sprintf("branch '%s' not found", name), nil)
	}
	for p, b := range m.worktrees {
		if b == name {
			return errors.VcsOperation("branch", fmt.Sprintf("branch '%s' is checked out at '%s'", name, p), nil)
		}
	}
	delete(m.branches, name)
	return nil
}

// GenerateUniqueBranchName returns base or the first free numbered variant
func (m *MockGitManager) GenerateUniqueBranchName(ctx context.Context, base string, maxAttempts int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("GenerateUniqueBranchName", base, maxAttempts)

	if err := m.checkError("GenerateUniqueBranchName"); err != nil {
		return "", err
	}
	if !m.branches[base] {
		return base, nil
	}
	for i := 1; i <= maxAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !m.branches[candidate] {
			return candidate, nil
		}
	}
	candidate := fmt.Sprintf("%s-%s", base, time.Now().Format("20060102-150405"))
	if m.branches[candidate] {
		return "", errors.VcsOperation("branch", "no unique branch name", nil)
	}
	return candidate, nil
}

// GenerateWorktreePath returns <worktreeBase>/<name>
func (m *MockGitManager) GenerateWorktreePath(name string) string {
	return filepath.Join(m.worktreeBase, name)
}

// GenerateBranchName returns agent/<name>
func (m *MockGitManager) GenerateBranchName(name string) string {
	return m.branchPrefix + "/" + name
}

// MockHookRunner is a testify mock of the hook runner
type MockHookRunner struct {
	mock.Mock
}

// NewMockHookRunner returns a runner on which every phase succeeds unless a
// more specific expectation is registered first with OnPhase.
func NewMockHookRunner() *MockHookRunner {
	return &MockHookRunner{}
}

// OnPhase makes the given phase return err
func (m *MockHookRunner) OnPhase(phase hooks.Phase, err error) *mock.Call {
	result := &hooks.Result{Phase: phase, Command: "fake", Success: err == nil}
	if err != nil {
		result.ExitCode = 1
	}
	return m.On("ExecuteSequence", mock.Anything, phase, mock.Anything, mock.Anything).
		Return([]*hooks.Result{result}, err)
}

// SucceedByDefault makes every phase without an expectation succeed
func (m *MockHookRunner) SucceedByDefault() *MockHookRunner {
	m.On("ExecuteSequence", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*hooks.Result{}, nil)
	return m
}

// ExecuteSequence records the call and returns the configured outcome
func (m *MockHookRunner) ExecuteSequence(ctx context.Context, phase hooks.Phase, specs []config.HookCommand, hc hooks.Context) ([]*hooks.Result, error) {
	args := m.Called(ctx, phase, specs, hc)
	results, _ := args.Get(0).([]*hooks.Result)
	return results, args.Error(1)
}

// FaultyStore is a registry store that can be told to fail
type FaultyStore struct {
	*registry.Store
	mu         sync.Mutex
	saves      int
	saveErrors map[int]error
	lockErr    error
}

// NewFaultyStore wraps a registry store for the document at path
func NewFaultyStore(path string) *FaultyStore {
	return &FaultyStore{
		Store:      registry.NewStore(path, time.Second),
		saveErrors: make(map[int]error),
	}
}

// FailSave makes the nth call to Save (counting from 1) return err
func (f *FaultyStore) FailSave(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErrors[n] = err
}

// FailLock makes Lock return err
func (f *FaultyStore) FailLock(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockErr = err
}

// SaveCount returns the number of Save calls so far
func (f *FaultyStore) SaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// Save fails if told to, otherwise writes the document
func (f *FaultyStore) Save(reg *registry.Registry) error {
	f.mu.Lock()
	f.saves++
	err := f.saveErrors[f.saves]
	f.mu.Unlock()

	if err != nil {
		return errors.Persistence(f.Path(), err)
	}
	return f.Store.Save(reg)
}

// Lock fails if told to, otherwise takes the real lock
func (f *FaultyStore) Lock(ctx context.Context) (func(), error) {
	f.mu.Lock()
	err := f.lockErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return f.Store.Lock(ctx)
}
