//go:build !windows

package hooks

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand starts line through sh in a new process group. When ctx is
// done the whole group is killed, not only the shell.
func shellCommand(ctx context.Context, line string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}

// startCommand starts cmd. The process group set up by shellCommand already
// covers every descendant, so there is nothing to release.
func startCommand(cmd *exec.Cmd) (func(), error) {
	return func() {}, cmd.Start()
}
