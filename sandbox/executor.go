package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/isdmx/coderoom/config"
	"github.com/isdmx/coderoom/language"
	"github.com/isdmx/coderoom/workspace"
)

// Outcome classifies how an execution ended
type Outcome string

// Execution outcomes
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeTimedOut     Outcome = "timedOut"
	OutcomeBackendError Outcome = "backendError"
)

// TimeoutMessage is reported in stderr when the wall-clock limit is hit
const TimeoutMessage = "Execution timed out."

// BytesPerKB converts sandbox.max_output_kb to bytes
const BytesPerKB = 1024

// ErrUnsupportedLanguage is returned when a backend has no runtime for a language
var ErrUnsupportedLanguage = errors.New("language not supported by backend")

// Job is one execution request handed to a backend
type Job struct {
	Language  language.Language
	Workspace *workspace.Workspace
	// EntryFile is relative to the workspace root, slash-separated.
	EntryFile string
}

// Result is what a backend observed
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Outcome  Outcome
	Duration time.Duration
}

// Executor defines the interface for sandbox execution
type Executor interface {
	Execute(ctx context.Context, job Job) (Result, error)
}

// Limits are the resource bounds applied to every execution
type Limits struct {
	Timeout        time.Duration
	MemoryMB       int
	CPUs           float64
	PIDsLimit      int
	NetworkEnabled bool
	MaxOutputBytes int
}

// LimitsFromConfig reads the sandbox section of the configuration
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		Timeout:        cfg.GetTimeout(),
		MemoryMB:       cfg.Sandbox.MemoryMB,
		CPUs:           cfg.Sandbox.CPUs,
		PIDsLimit:      cfg.Sandbox.PIDsLimit,
		NetworkEnabled: cfg.Sandbox.NetworkEnabled,
		MaxOutputBytes: cfg.Sandbox.MaxOutputKB * BytesPerKB,
	}
}

func timedOut(duration time.Duration) Result {
	return Result{
		Stdout:   "",
		Stderr:   TimeoutMessage,
		ExitCode: -1,
		Outcome:  OutcomeTimedOut,
		Duration: duration,
	}
}

// deadlineHit reports whether runCtx ended because its deadline passed
func deadlineHit(runCtx context.Context) bool {
	return errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
