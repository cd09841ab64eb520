package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill
const waitDelay = 2 * time.Second

// Command describes one process invocation
type Command struct {
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the process environment when non-nil.
	Env []string
	// MaxOutput caps each captured stream in bytes; zero means unlimited.
	MaxOutput int
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, c Command) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
// When ctx is done the whole process group is killed.
type RealCommandRunner struct{}

// RunCommand executes the given command. A non-zero exit status is not an error.
func (RealCommandRunner) RunCommand(ctx context.Context, c Command) (stdout, stderr string, exitCode int, err error) {
	if len(c.Args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // arguments are built by the executors
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: c.MaxOutput, unlimited: c.MaxOutput <= 0}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: c.MaxOutput, unlimited: c.MaxOutput <= 0}

	err = cmd.Run()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return stdoutBuf.String(), stderrBuf.String(), -1, err
		}
		exitCode = exitErr.ExitCode()
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// limitedWriter keeps the first remaining bytes and discards the rest.
// It always reports a full write so the copying goroutine keeps draining.
type limitedWriter struct {
	w         *bytes.Buffer
	remaining int
	unlimited bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.unlimited {
		return lw.w.Write(p)
	}
	if lw.remaining <= 0 {
		return len(p), nil
	}
	chunk := p
	if len(chunk) > lw.remaining {
		chunk = chunk[:lw.remaining]
	}
	n, _ := lw.w.Write(chunk)
	lw.remaining -= n
	return len(p), nil
}
