package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/depgraph"
	"github.com/isdmx/coderoom/language"
	"github.com/isdmx/coderoom/logger"
	"github.com/isdmx/coderoom/metrics"
	"github.com/isdmx/coderoom/sandbox"
	"github.com/isdmx/coderoom/validator"
	"github.com/isdmx/coderoom/workspace"
)

// PreviewMessage is the output text of a preview response
const PreviewMessage = "Dependency analysis completed in preview mode."

const resultPreview = "preview"

// Request is one execution request as submitted by a client
type Request struct {
	// ID correlates logs; a uuid is generated when empty.
	ID       string            `json:"-"`
	Language string            `json:"language"`
	Code     string            `json:"code,omitempty"`
	Entry    string            `json:"entry,omitempty"`
	Files    map[string]string `json:"files,omitempty"`
	Mode     string            `json:"mode,omitempty"`
}

// Preview is the preview-mode payload
type Preview struct {
	Output      string               `json:"output" yaml:"output"`
	PackageJSON depgraph.PackageJSON `json:"packageJson" yaml:"packageJson"`
}

// Response holds exactly one of Preview or Execution
type Response struct {
	Preview   *Preview
	Execution *sandbox.Output
	Outcome   sandbox.Outcome
}

// Service runs requests through validation, preview or execution
type Service struct {
	logger     *zap.Logger
	registry   *language.Registry
	workspaces *workspace.Manager
	executor   sandbox.Executor
	resolver   *depgraph.Resolver
	metrics    *metrics.Collector
	newID      func() string
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records request metrics on c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = c
	}
}

// WithIDGenerator overrides how request ids are generated
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		s.newID = f
	}
}

// NewService creates a Service
func NewService(
	logger *zap.Logger,
	registry *language.Registry,
	workspaces *workspace.Manager,
	executor sandbox.Executor,
	resolver *depgraph.Resolver,
	opts ...Option,
) *Service {
	s := &Service{
		logger:     logger,
		registry:   registry,
		workspaces: workspaces,
		executor:   executor,
		resolver:   resolver,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan is a request after shape checks
type plan struct {
	id     string
	lang   language.Language
	mode   validator.Mode
	entry  string
	files  map[string]string
	inline bool
}

// Run processes req. Returned errors are always *Error.
func (s *Service) Run(ctx context.Context, req Request) (Response, error) {
	p, err := s.prepare(req)
	if err != nil {
		s.metrics.ObserveRequest(req.Language, string(KindOf(err)))
		return Response{}, err
	}

	log := logger.ForRequest(s.logger, p.id, p.lang.Tag)

	if res := s.validate(p); !res.Passed {
		log.Info("code validation failed", zap.Strings("issues", res.Issues))
		s.metrics.ObserveValidationFailure(p.lang.Tag)
		s.metrics.ObserveRequest(p.lang.Tag, string(KindValidationFailed))
		return Response{}, &Error{Kind: KindValidationFailed, Message: MsgValidationFailed, Issues: res.Issues}
	}

	if p.mode == validator.ModePreview && p.lang.SupportsPreview {
		manifest := s.resolver.Resolve(p.entry, p.files)
		log.Debug("preview resolved",
			zap.Strings("visited", manifest.Visited),
			zap.Int("dependencies", len(manifest.Dependencies)))
		s.metrics.ObserveRequest(p.lang.Tag, resultPreview)
		return Response{Preview: &Preview{Output: PreviewMessage, PackageJSON: manifest.PackageJSON()}}, nil
	}

	resp, err := s.execute(ctx, log, p)
	if err != nil {
		s.metrics.ObserveRequest(p.lang.Tag, string(KindOf(err)))
		return Response{}, err
	}
	s.metrics.ObserveRequest(p.lang.Tag, string(resp.Outcome))
	return resp, nil
}

func (s *Service) prepare(req Request) (*plan, error) {
	if req.Language == "" || (req.Code == "" && (req.Entry == "" || len(req.Files) == 0)) {
		return nil, newError(KindMissingFields, MsgMissingFields, nil)
	}

	mode, err := validator.ParseMode(req.Mode)
	if err != nil {
		return nil, newError(KindInvalidRequest, err.Error(), nil)
	}

	lang, ok := s.registry.Lookup(req.Language)
	if !ok {
		return nil, newError(KindUnsupportedLanguage, "Unsupported language: "+req.Language, nil)
	}

	entry := req.Entry
	if entry == "" {
		entry = lang.Profile.EntryFile
	}
	entry, err = workspace.CheckName(entry)
	if err != nil {
		return nil, newError(KindInvalidRequest, "Invalid file name", err)
	}

	files := make(map[string]string, len(req.Files)+1)
	for name, content := range req.Files {
		clean, err := workspace.CheckName(name)
		if err != nil {
			return nil, newError(KindInvalidRequest, "Invalid file name", err)
		}
		if _, dup := files[clean]; dup {
			return nil, newError(KindInvalidRequest, "Duplicate file name: "+clean, nil)
		}
		files[clean] = content
	}
	if req.Code != "" {
		files[entry] = req.Code
	}
	if _, ok := files[entry]; !ok {
		return nil, newError(KindInvalidRequest, "Entry file not found: "+entry, nil)
	}
	if name, ok := dirCollision(files); ok {
		return nil, newError(KindInvalidRequest, "File name is also a directory: "+name, nil)
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}

	return &plan{
		id:     id,
		lang:   lang,
		mode:   mode,
		entry:  entry,
		files:  files,
		inline: len(req.Files) == 0,
	}, nil
}

// validate screens the entry and every other source file of the language
func (s *Service) validate(p *plan) validator.Result {
	if p.inline {
		return p.lang.Validate(p.files[p.entry], p.mode)
	}

	order := make([]string, 0, len(p.files))
	for name := range p.files {
		if name == p.entry || p.lang.IsSource(name) {
			order = append(order, name)
		}
	}
	sort.Strings(order)

	results := make(map[string]validator.Result, len(order))
	for _, name := range order {
		results[name] = p.lang.Validate(p.files[name], p.mode)
	}
	return validator.Merge(results, order)
}

func (s *Service) execute(ctx context.Context, log *zap.Logger, p *plan) (Response, error) {
	ws, err := s.workspaces.Acquire(p.id)
	if err != nil {
		log.Error("failed to acquire workspace", zap.Error(err))
		return Response{}, newError(KindInternal, MsgExecutionFailed, err)
	}
	defer s.workspaces.Release(ws)

	if err := s.workspaces.Materialize(ws, p.files); err != nil {
		log.Error("failed to materialize workspace", zap.Error(err))
		return Response{}, newError(KindInternal, MsgExecutionFailed, err)
	}

	done := s.metrics.StartExecution(p.lang.Tag)
	result, err := s.executor.Execute(ctx, sandbox.Job{Language: p.lang, Workspace: ws, EntryFile: p.entry})
	done(string(result.Outcome))

	if err != nil {
		log.Error("sandbox backend error", zap.Error(err), zap.Duration("duration", result.Duration))
		return Response{}, &Error{
			Kind:    KindBackend,
			Message: MsgExecutionFailed,
			Partial: partialOutput(result),
			Err:     fmt.Errorf("sandbox execute: %w", err),
		}
	}

	log.Info("execution finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	out := sandbox.Normalize(result)
	return Response{Execution: &out, Outcome: result.Outcome}, nil
}

// dirCollision finds a file whose name is a parent directory of another file
func dirCollision(files map[string]string) (string, bool) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			if _, ok := files[dir]; ok {
				return dir, true
			}
		}
	}
	return "", false
}
