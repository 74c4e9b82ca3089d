package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

type invocation struct {
	binary      string
	args        []string
	dir         string
	env         []string
	gracePeriod time.Duration
}

type output struct {
	stdout   []byte
	stderr   []byte
	exitCode int
}

// run executes inv and waits for it. On context cancellation the process
// group gets SIGTERM, then SIGKILL once the grace period has passed.
func run(ctx context.Context, inv invocation) (*output, error) {
	c := exec.CommandContext(ctx, inv.binary, inv.args...) //nolint:gosec // the binary and args come from operator configuration
	c.Dir = inv.dir
	if len(inv.env) > 0 {
		c.Env = append(os.Environ(), inv.env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = inv.gracePeriod

	err := c.Run()
	out := &output{stdout: stdout.Bytes(), stderr: stderr.Bytes(), exitCode: c.ProcessState.ExitCode()}
	if err != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s killed: %w", inv.binary, ctx.Err())
		}
		return out, fmt.Errorf("%s exited with code %d: %w", inv.binary, out.exitCode, err)
	}
	return out, nil
}
