package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/collab"
	"github.com/isdmx/coderoom/config"
	"github.com/isdmx/coderoom/depgraph"
	"github.com/isdmx/coderoom/httpserver"
	"github.com/isdmx/coderoom/language"
	"github.com/isdmx/coderoom/logger"
	"github.com/isdmx/coderoom/mcpserver"
	"github.com/isdmx/coderoom/metrics"
	"github.com/isdmx/coderoom/pipeline"
	"github.com/isdmx/coderoom/sandbox"
	"github.com/isdmx/coderoom/workspace"
)

// coreModule provides everything needed to run a pipeline request
func coreModule() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			metrics.NewCollector,
			language.NewFromConfig,
			newWorkspaceManager,
			sandbox.NewExecutor,
			depgraph.NewResolver,
			newPipelineService,
			newMCPServer,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

// serveModule adds the HTTP server and the collaboration relay
func serveModule() fx.Option {
	return fx.Options(
		fx.Provide(
			collab.NewStore,
			newHub,
			newHTTPServer,
		),
		fx.Invoke(registerHTTPServer),
	)
}

func newWorkspaceManager(log *zap.Logger, cfg *config.Config, m *metrics.Collector) *workspace.Manager {
	return workspace.NewManagerFromConfig(log, cfg,
		workspace.WithCleanupErrorHook(func(error) { m.ObserveCleanupError() }))
}

func newPipelineService(
	log *zap.Logger,
	registry *language.Registry,
	workspaces *workspace.Manager,
	executor sandbox.Executor,
	resolver *depgraph.Resolver,
	m *metrics.Collector,
) *pipeline.Service {
	return pipeline.NewService(log, registry, workspaces, executor, resolver, pipeline.WithMetrics(m))
}

func newMCPServer(log *zap.Logger, registry *language.Registry, svc *pipeline.Service) *mcpserver.MCPServer {
	return mcpserver.New(log, registry, svc)
}

func newHub(log *zap.Logger, cfg *config.Config, store *collab.Store, m *metrics.Collector) *collab.Hub {
	return collab.NewHub(log, store,
		collab.WithHubMetrics(m),
		collab.WithAllowedOrigins(cfg.Server.AllowedOrigins))
}

func newHTTPServer(
	log *zap.Logger,
	cfg *config.Config,
	svc *pipeline.Service,
	m *metrics.Collector,
	hub *collab.Hub,
	mcp *mcpserver.MCPServer,
) *httpserver.Server {
	opts := []httpserver.Option{
		httpserver.WithMetrics(m),
		httpserver.WithCollabHub(hub),
	}
	if cfg.Server.MCPEnabled {
		opts = append(opts, httpserver.WithMCPHandler(mcp.HTTPHandler()))
	}
	return httpserver.New(log, cfg, svc, opts...)
}

func registerHTTPServer(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, srv *httpserver.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("configuration loaded",
				zap.Int("server.port", cfg.Server.Port),
				zap.Bool("server.mcp_enabled", cfg.Server.MCPEnabled),
				zap.Strings("server.allowed_origins", cfg.Server.AllowedOrigins),
				zap.String("sandbox.backend", cfg.Sandbox.Backend),
				zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
				zap.Int("sandbox.memory_mb", cfg.Sandbox.MemoryMB),
				zap.Float64("sandbox.cpus", cfg.Sandbox.CPUs),
				zap.Bool("sandbox.network_enabled", cfg.Sandbox.NetworkEnabled),
			)
			return srv.Start()
		},
		OnStop: srv.Shutdown,
	})
}
