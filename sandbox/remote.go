package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a remote response body is read
const maxResponseBytes = 4 << 20

// pistonTimedOut is the status newer Piston releases report for a wall-clock kill
const pistonTimedOut = "TO"

// RemoteExecutor implements Executor against a Piston-compatible execution service
type RemoteExecutor struct {
	logger         *zap.Logger
	url            string
	limits         Limits
	requestTimeout time.Duration
	runTimeout     time.Duration
	client         *http.Client
}

// RemoteExecutorOption defines a functional option for RemoteExecutor
type RemoteExecutorOption func(*RemoteExecutor)

// WithHTTPClient sets the HTTP client for RemoteExecutor
func WithHTTPClient(client *http.Client) RemoteExecutorOption {
	return func(r *RemoteExecutor) {
		r.client = client
	}
}

// WithRunTimeout asks the remote service to enforce its own run_timeout; zero leaves the field out
func WithRunTimeout(d time.Duration) RemoteExecutorOption {
	return func(r *RemoteExecutor) {
		r.runTimeout = d
	}
}

// NewRemoteExecutor creates a RemoteExecutor posting to url
func NewRemoteExecutor(logger *zap.Logger, url string, limits Limits, requestTimeout time.Duration, opts ...RemoteExecutorOption) *RemoteExecutor {
	executor := &RemoteExecutor{
		logger:         logger,
		url:            url,
		limits:         limits,
		requestTimeout: requestTimeout,
		client:         &http.Client{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

type pistonFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type pistonRequest struct {
	Language   string       `json:"language"`
	Version    string       `json:"version"`
	Files      []pistonFile `json:"files"`
	RunTimeout int64        `json:"run_timeout,omitempty"`
}

type pistonStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
	Status string `json:"status"`
}

type pistonResponse struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Compile  *pistonStage `json:"compile"`
	Run      pistonStage  `json:"run"`
	Message  string       `json:"message"`
}

// Execute sends the workspace files to the remote service and maps its response
func (r *RemoteExecutor) Execute(ctx context.Context, job Job) (Result, error) {
	profile := job.Language.Profile
	if profile.RemoteName == "" {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("%w: no remote runtime for %s", ErrUnsupportedLanguage, job.Language.Tag)
	}
	if job.Workspace == nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("no workspace for %s job", job.Language.Tag)
	}

	body, err := json.Marshal(pistonRequest{
		Language:   profile.RemoteName,
		Version:    profile.RemoteVersion,
		Files:      orderedFiles(job),
		RunTimeout: r.runTimeout.Milliseconds(),
	})
	if err != nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("failed to encode remote request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeBackendError}, fmt.Errorf("failed to build remote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	r.logger.Debug("remote sandbox executing",
		zap.String("url", r.url),
		zap.String("language", profile.RemoteName),
		zap.String("version", profile.RemoteVersion),
		zap.String("entry", job.EntryFile))

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if deadlineHit(reqCtx) {
			r.logger.Warn("remote sandbox timed out", zap.Duration("timeout", r.requestTimeout))
			return timedOut(duration), nil
		}
		return Result{Outcome: OutcomeBackendError, Duration: duration}, fmt.Errorf("remote execution request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if deadlineHit(reqCtx) {
			return timedOut(time.Since(start)), nil
		}
		return Result{Outcome: OutcomeBackendError, Duration: duration}, fmt.Errorf("failed to read remote response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{Outcome: OutcomeBackendError, Duration: duration},
			fmt.Errorf("remote execution request failed with status %d", resp.StatusCode)
	}

	var decoded pistonResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{Outcome: OutcomeBackendError, Duration: duration}, fmt.Errorf("failed to decode remote response: %w", err)
	}

	return r.mapResponse(decoded, duration), nil
}

func (r *RemoteExecutor) mapResponse(resp pistonResponse, duration time.Duration) Result {
	if resp.Compile != nil && resp.Compile.Code != nil && *resp.Compile.Code != 0 {
		return r.stageResult(*resp.Compile, duration)
	}
	if resp.Run.Status == pistonTimedOut {
		return timedOut(duration)
	}
	return r.stageResult(resp.Run, duration)
}

func (r *RemoteExecutor) stageResult(stage pistonStage, duration time.Duration) Result {
	exitCode := -1
	if stage.Code != nil {
		exitCode = *stage.Code
	}
	return Result{
		Stdout:   truncate(stage.Stdout, r.limits.MaxOutputBytes),
		Stderr:   truncate(stage.Stderr, r.limits.MaxOutputBytes),
		ExitCode: exitCode,
		Outcome:  OutcomeCompleted,
		Duration: duration,
	}
}

// orderedFiles puts the entry file first, which is how Piston picks what to run.
func orderedFiles(job Job) []pistonFile {
	files := make([]pistonFile, 0, len(job.Workspace.Files))
	if content, ok := job.Workspace.Files[job.EntryFile]; ok {
		files = append(files, pistonFile{Name: job.EntryFile, Content: content})
	}
	for _, name := range job.Workspace.Names() {
		if name == job.EntryFile {
			continue
		}
		files = append(files, pistonFile{Name: name, Content: job.Workspace.Files[name]})
	}
	return files
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

