package harness

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, in case a grandchild still holds them open.
const waitDelay = time.Second

// ExecResult is the captured outcome of one subprocess run.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs an external program to completion.
//
// Run returns a nil error whenever the program started and exited, whatever
// its exit code. A non-nil error means it could not be started or was
// stopped because ctx ended.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (ExecResult, error)
}

// CommandExecutor runs programs with os/exec.
type CommandExecutor struct{}

// Run executes name with args, capturing both output streams.
func (CommandExecutor) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, err
	}
}
