package sandbox

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

// LocalExecutor implements Executor by running commands on the host (for development only)
type LocalExecutor struct {
	logger    *zap.Logger
	limits    Limits
	shell     string
	cmdRunner CommandRunner
}

// LocalExecutorOption defines a functional option for LocalExecutor
type LocalExecutorOption func(*LocalExecutor)

// WithLocalCommandRunner sets the CommandRunner for LocalExecutor
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.cmdRunner = cmdRunner
	}
}

// WithLocalShell sets the shell used to interpret language commands
func WithLocalShell(shell string) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.shell = shell
	}
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor(logger *zap.Logger, limits Limits, opts ...LocalExecutorOption) *LocalExecutor {
	executor := &LocalExecutor{
		logger:    logger,
		limits:    limits,
		shell:     "/bin/sh",
		cmdRunner: RealCommandRunner{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the job in the workspace directory on the host.
// WARNING: there is no isolation beyond the wall-clock limit.
func (l *LocalExecutor) Execute(ctx context.Context, job Job) (Result, error) {
	if job.Language.Profile.RunCmd == "" {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("%w: no run command for %s", ErrUnsupportedLanguage, job.Language.Tag)
	}
	if job.Workspace == nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("no workspace for %s job", job.Language.Tag)
	}

	// compiled artifacts land next to the sources; the workspace is discarded afterwards
	script := job.Language.Command(job.EntryFile, job.Workspace.Root)

	runCtx, cancel := context.WithTimeout(ctx, l.limits.Timeout)
	defer cancel()

	l.logger.Warn("executing untrusted code on the host",
		zap.String("language", job.Language.Tag),
		zap.String("dir", job.Workspace.Root))

	start := time.Now()
	stdout, stderr, exitCode, err := l.cmdRunner.RunCommand(runCtx, Command{
		Args:      []string{l.shell, "-c", script},
		Dir:       job.Workspace.Root,
		Env:       buildEnv(job.Language.Profile.Environment),
		MaxOutput: l.limits.MaxOutputBytes,
	})
	duration := time.Since(start)

	if deadlineHit(runCtx) {
		return timedOut(duration), nil
	}
	if runCtx.Err() != nil {
		return Result{ExitCode: -1, Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("local run cancelled: %w", runCtx.Err())
	}

	if err != nil {
		return Result{Stdout: stdout, Stderr: stderr, ExitCode: -1, Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("failed to execute command: %w", err)
	}

	return Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Outcome:  OutcomeCompleted,
		Duration: duration,
	}, nil
}

// buildEnv starts from the host environment and appends the language variables in key order
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}
