//go:build windows

package hooks

import (
	"context"
	"os/exec"

	"golang.org/x/sys/windows"

	"twin/internal/logger"
)

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", line)
}

// startCommand starts cmd inside a job object. When the command's context
// is done the job is terminated, which kills cmd.exe and every process it
// spawned. Processes started before the assignment completes are not in
// the job. The returned func releases the job handle after Wait.
func startCommand(cmd *exec.Cmd) (func(), error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		logger.WithError(err).Debug("Failed to create job object, only the shell will be killed on timeout")
		return func() {}, cmd.Start()
	}

	cmd.Cancel = func() error {
		if err := windows.TerminateJobObject(job, 1); err != nil {
			logger.WithError(err).Debug("Failed to terminate hook job object")
		}
		return cmd.Process.Kill()
	}
	if err := cmd.Start(); err != nil {
		windows.CloseHandle(job)
		return nil, err
	}

	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err == nil {
		err = windows.AssignProcessToJobObject(job, proc)
		windows.CloseHandle(proc)
	}
	if err != nil {
		logger.WithError(err).Debug("Failed to assign hook to job object")
	}
	return func() { windows.CloseHandle(job) }, nil
}
