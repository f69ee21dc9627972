// Package hooks runs the user-defined commands attached to environment
// lifecycle phases.
package hooks

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"twin/internal/config"
	"twin/internal/constants"
	"twin/internal/errors"
	"twin/internal/logger"
)

// Phase identifies when a hook runs
type Phase string

const (
	PreCreate  Phase = "pre_create"
	PostCreate Phase = "post_create"
	PreRemove  Phase = "pre_remove"
	PostRemove Phase = "post_remove"
)

// Context is the environment a hook runs for. Its values are substituted
// into the hook command and exported to the hook process.
type Context struct {
	AgentName    string
	WorktreePath string
	Branch       string
	ProjectRoot  string
	Vars         map[string]string
}

// EnvVars returns the variables exported to every hook process
func (c Context) EnvVars() map[string]string {
	env := map[string]string{
		"TWIN_AGENT_NAME":    c.AgentName,
		"TWIN_BRANCH":        c.Branch,
		"TWIN_WORKTREE_PATH": c.WorktreePath,
		"TWIN_PROJECT_ROOT":  c.ProjectRoot,
	}
	for k, v := range c.Vars {
		env[k] = v
	}
	return env
}

// Result is the outcome of one hook execution
type Result struct {
	Phase      Phase         `json:"phase"`
	Command    string        `json:"command"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
	TimedOut   bool          `json:"timed_out,omitempty"`
}

// Runner executes hooks through the platform shell
type Runner struct {
	dryRun bool
}

// NewRunner creates a Runner. In dry-run mode commands are logged and
// reported as successful without being started.
func NewRunner(dryRun bool) *Runner {
	return &Runner{dryRun: dryRun}
}

// Expand substitutes {agent_name}, {branch}, {worktree_path},
// {project_root} and every {key} of the custom variables in template.
// Substitution is textual and single pass.
func Expand(template string, hc Context) string {
	pairs := []string{
		"{agent_name}", hc.AgentName,
		"{branch}", hc.Branch,
		"{worktree_path}", hc.WorktreePath,
		"{project_root}", hc.ProjectRoot,
	}

	keys := make([]string, 0, len(hc.Vars))
	for k := range hc.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", hc.Vars[k])
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

// CommandLine returns the expanded shell line for spec
func CommandLine(spec config.HookCommand, hc Context) string {
	parts := []string{Expand(spec.Command, hc)}
	for _, arg := range spec.Args {
		parts = append(parts, Expand(arg, hc))
	}
	return strings.Join(parts, " ")
}

// Execute runs a single hook. The returned Result is always non-nil; the
// error is a HOOK error whenever the hook did not succeed.
func (r *Runner) Execute(ctx context.Context, phase Phase, spec config.HookCommand, hc Context) (*Result, error) {
	line := CommandLine(spec, hc)
	result := &Result{Phase: phase, Command: line}

	log := logger.WithContext(ctx).WithFields(logger.Fields{
		"phase":   phase,
		"command": line,
	})

	if r.dryRun {
		log.Info("Dry run: hook not executed")
		result.Success = true
		result.Stdout = "[DRY RUN]"
		return result, nil
	}

	timeout := spec.TimeoutDuration()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, line)
	cmd.Dir = workingDir(hc)
	cmd.Env = buildEnv(spec, hc)
	cmd.WaitDelay = constants.HookWaitDelay

	stdout := &cappedBuffer{limit: constants.MaxOutputLength}
	stderr := &cappedBuffer{limit: constants.MaxOutputLength}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug("Running hook")
	start := time.Now()
	release, err := startCommand(cmd)
	if err == nil {
		err = cmd.Wait()
		release()
	}
	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		result.Success = true
		log.WithField("duration_ms", result.Duration.Milliseconds()).Debug("Hook completed")
		return result, nil
	}

	result.ExitCode = -1
	if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
		log.WithField("timeout", timeout).Warn("Hook timed out, process group killed")
		return result, errors.Hook(string(phase), line, result.ExitCode, true,
			fmt.Sprintf("no exit after %s\n%s", timeout, result.Stderr))
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, errors.Hook(string(phase), line, result.ExitCode, false, result.Stderr)
	}

	result.Stderr = strings.TrimSpace(result.Stderr + "\n" + err.Error())
	return result, errors.HookSpawn(string(phase), line, err)
}

// ExecuteSequence runs specs in declared order. A failing hook stops the
// sequence unless it is marked ContinueOnError, in which case the failure is
// logged and the next hook runs. Results of every hook that ran are
// returned, including the failing one.
func (r *Runner) ExecuteSequence(ctx context.Context, phase Phase, specs []config.HookCommand, hc Context) ([]*Result, error) {
	results := make([]*Result, 0, len(specs))

	for i, spec := range specs {
		result, err := r.Execute(ctx, phase, spec, hc)
		results = append(results, result)
		if err == nil {
			continue
		}

		if !spec.ContinueOnError {
			return results, err
		}

		logger.WithContext(ctx).WithError(err).WithFields(logger.Fields{
			"phase": phase,
			"index": i,
		}).Warn("Hook failed, continuing")
	}

	return results, nil
}

// workingDir is the worktree when it exists. Pre-create hooks run before
// the worktree is checked out, so they start in the project root.
func workingDir(hc Context) string {
	if hc.WorktreePath != "" {
		if info, err := os.Stat(hc.WorktreePath); err == nil && info.IsDir() {
			return hc.WorktreePath
		}
	}
	return hc.ProjectRoot
}

func buildEnv(spec config.HookCommand, hc Context) []string {
	env := os.Environ()

	ctxVars := hc.EnvVars()
	keys := make([]string, 0, len(ctxVars))
	for k := range ctxVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+ctxVars[k])
	}

	keys = keys[:0]
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+Expand(spec.Env[k], hc))
	}

	return env
}

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest, so a chatty hook cannot grow memory without bound.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
