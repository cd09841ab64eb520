package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Container runtime binaries
const (
	BinaryDocker = "docker"
	BinaryPodman = "podman"
)

// Paths inside the container
const (
	containerWorkdir = "/workspace"
	containerOutDir  = "/tmp"
	tmpfsSpec        = "/tmp:rw,exec,size=64m"
	sandboxUser      = "65534:65534"
)

// exitCodeRuntimeFailure is what docker and podman return when the container itself could not start.
// A program may exit with it too, so the runtime's own error line must also be present.
const exitCodeRuntimeFailure = 125

// Prefixes the runtime CLI puts on its own stderr lines when it fails
const (
	daemonErrorPrefix = "Error response from daemon"
	podmanErrorPrefix = "Error: "
)

const removeTimeout = 10 * time.Second

// ContainerExecutor implements Executor with the docker or podman CLI
type ContainerExecutor struct {
	logger    *zap.Logger
	binary    string
	limits    Limits
	cmdRunner CommandRunner
	nameFunc  func() (string, error)
}

// ContainerExecutorOption defines a functional option for ContainerExecutor
type ContainerExecutorOption func(*ContainerExecutor)

// WithContainerCommandRunner sets the CommandRunner for ContainerExecutor
func WithContainerCommandRunner(cmdRunner CommandRunner) ContainerExecutorOption {
	return func(c *ContainerExecutor) {
		c.cmdRunner = cmdRunner
	}
}

// WithContainerNameFunc overrides how container names are generated
func WithContainerNameFunc(f func() (string, error)) ContainerExecutorOption {
	return func(c *ContainerExecutor) {
		c.nameFunc = f
	}
}

// NewContainerExecutor creates a ContainerExecutor for binary ("docker" or "podman")
func NewContainerExecutor(logger *zap.Logger, binary string, limits Limits, opts ...ContainerExecutorOption) *ContainerExecutor {
	executor := &ContainerExecutor{
		logger:    logger,
		binary:    binary,
		limits:    limits,
		cmdRunner: RealCommandRunner{},
		nameFunc:  generateContainerName,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the job's entry file in a fresh container
func (c *ContainerExecutor) Execute(ctx context.Context, job Job) (Result, error) {
	profile := job.Language.Profile
	if profile.Image == "" {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("%w: no image for %s", ErrUnsupportedLanguage, job.Language.Tag)
	}
	if job.Workspace == nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("no workspace for %s job", job.Language.Tag)
	}

	name, err := c.nameFunc()
	if err != nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("failed to generate container name: %w", err)
	}

	args := c.buildArgs(name, job)

	c.logger.Debug("container sandbox executing",
		zap.String("container", name),
		zap.String("image", profile.Image),
		zap.String("language", job.Language.Tag),
		zap.String("entry", job.EntryFile),
		zap.Int("memory_mb", c.limits.MemoryMB),
		zap.Float64("cpus", c.limits.CPUs),
		zap.Duration("timeout", c.limits.Timeout))

	runCtx, cancel := context.WithTimeout(ctx, c.limits.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, runErr := c.cmdRunner.RunCommand(runCtx, Command{
		Args:      args,
		MaxOutput: c.limits.MaxOutputBytes,
	})
	duration := time.Since(start)

	if runCtx.Err() != nil {
		// --rm does not fire when the client is killed before the container exits
		c.forceRemove(name)
		if deadlineHit(runCtx) {
			c.logger.Warn("container sandbox timed out",
				zap.String("container", name),
				zap.Duration("timeout", c.limits.Timeout))
			return timedOut(duration), nil
		}
		return Result{ExitCode: -1, Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("%s run of container %s cancelled: %w", c.binary, name, runCtx.Err())
	}

	if runErr != nil {
		c.forceRemove(name)
		return Result{Stdout: stdout, Stderr: stderr, ExitCode: -1, Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("failed to run %s: %w", c.binary, runErr)
	}

	if exitCode == exitCodeRuntimeFailure && c.runtimeFailed(stderr) {
		c.forceRemove(name)
		return Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode, Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("%s could not start container %s", c.binary, name)
	}

	c.logger.Debug("container sandbox completed",
		zap.String("container", name),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration),
		zap.Int("stdout_bytes", len(stdout)),
		zap.Int("stderr_bytes", len(stderr)))

	return Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Outcome:  OutcomeCompleted,
		Duration: duration,
	}, nil
}

func (c *ContainerExecutor) buildArgs(name string, job Job) []string {
	profile := job.Language.Profile
	memory := fmt.Sprintf("%dm", c.limits.MemoryMB)

	network := "none"
	if c.limits.NetworkEnabled {
		network = "bridge"
	}

	args := []string{
		c.binary, "run",
		"--rm",
		"--name", name,
		"--network", network,
		"--memory", memory,
		"--memory-swap", memory,
		"--cpus", strconv.FormatFloat(c.limits.CPUs, 'f', -1, 64),
		"--pids-limit", strconv.Itoa(c.limits.PIDsLimit),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--user", sandboxUser,
		"--read-only",
		"--tmpfs", tmpfsSpec,
		"-v", job.Workspace.Root + ":" + containerWorkdir + ":ro",
		"-w", containerWorkdir,
	}

	keys := make([]string, 0, len(profile.Environment))
	for key := range profile.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-e", key+"="+profile.Environment[key])
	}

	args = append(args, profile.Image, "sh", "-c", job.Language.Command(job.EntryFile, containerOutDir))
	return args
}

// runtimeFailed reports whether stderr carries an error line written by the runtime CLI rather than the program
func (c *ContainerExecutor) runtimeFailed(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, c.binary+": "):
			return true
		case strings.HasPrefix(line, daemonErrorPrefix):
			return true
		case c.binary == BinaryPodman && strings.HasPrefix(line, podmanErrorPrefix):
			return true
		}
	}
	return false
}

// forceRemove is a best-effort cleanup; the container may already be gone.
func (c *ContainerExecutor) forceRemove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	_, stderr, exitCode, err := c.cmdRunner.RunCommand(ctx, Command{Args: []string{c.binary, "rm", "-f", name}})
	if err != nil || exitCode != 0 {
		c.logger.Debug("container removal did not succeed",
			zap.String("container", name),
			zap.Int("exit_code", exitCode),
			zap.String("stderr", stderr),
			zap.Error(err))
	}
}

func generateContainerName() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "coderoom-" + hex.EncodeToString(b), nil
}
