package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when the git binary is unavailable
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// InitGitRepo creates a repository with one commit under a fresh temp
// directory and returns its path. The repository sits one level below the
// temp root so the default "../workspaces" base stays inside the test's
// temp directory.
func InitGitRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	root := t.TempDir()
	// Resolve symlinked temp dirs (macOS /var -> /private/var) so paths
	// compare equal to what git reports.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	repo := filepath.Join(root, "project")
	if err := os.MkdirAll(repo, 0755); err != nil {
		t.Fatalf("Failed to create repo dir: %v", err)
	}

	RunGit(t, repo, "init", "--quiet")
	RunGit(t, repo, "symbolic-ref", "HEAD", "refs/heads/main")
	WriteFile(t, filepath.Join(repo, "README.md"), "# project\n")
	RunGit(t, repo, "add", "README.md")
	RunGit(t, repo, "commit", "--quiet", "-m", "initial")

	return repo
}

// RunGit runs git in dir with a fixed identity and fails the test on error
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	full := append([]string{
		"-C", dir,
		"-c", "user.name=twin-test",
		"-c", "user.email=twin-test@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)

	cmd := exec.Command("git", full...)
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

// WriteFile writes content to path, creating parent directories
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
