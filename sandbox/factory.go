package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/coderoom/config"
)

// NewExecutor creates the executor selected by sandbox.backend
func NewExecutor(logger *zap.Logger, cfg *config.Config) (Executor, error) {
	limits := LimitsFromConfig(cfg)

	switch cfg.Sandbox.Backend {
	case config.BackendRemote:
		return NewRemoteExecutor(logger, cfg.Remote.URL, limits, cfg.GetRemoteTimeout(),
			WithRunTimeout(cfg.GetRemoteRunTimeout())), nil
	case config.BackendDocker:
		return NewContainerExecutor(logger, BinaryDocker, limits), nil
	case config.BackendPodman:
		return NewContainerExecutor(logger, BinaryPodman, limits), nil
	case config.BackendLocal:
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend requires sandbox.enable_local_backend")
		}
		logger.Warn("local sandbox backend enabled: code runs on the host without isolation")
		return NewLocalExecutor(logger, limits), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
