package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by sandbox.backend
const (
	BackendRemote = "remote"
	BackendDocker = "docker"
	BackendPodman = "podman"
	BackendLocal  = "local"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Sandbox   SandboxConfig             `mapstructure:"sandbox"`
	Remote    RemoteConfig              `mapstructure:"remote"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Languages map[string]LanguageConfig `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MCPEnabled     bool     `mapstructure:"mcp_enabled"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string  `mapstructure:"backend"`
	EnableLocalBackend bool    `mapstructure:"enable_local_backend"`
	TimeoutSec         int     `mapstructure:"timeout_sec"`
	MemoryMB           int     `mapstructure:"memory_mb"`
	CPUs               float64 `mapstructure:"cpus"`
	PIDsLimit          int     `mapstructure:"pids_limit"`
	NetworkEnabled     bool    `mapstructure:"network_enabled"`
	MaxOutputKB        int     `mapstructure:"max_output_kb"`
	WorkspaceRoot      string  `mapstructure:"workspace_root"`
}

// RemoteConfig holds settings for the remote execution service backend
type RemoteConfig struct {
	URL               string `mapstructure:"url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	// RunTimeoutMS is forwarded as run_timeout only when positive; Piston rejects values above its own limit.
	RunTimeoutMS      int    `mapstructure:"run_timeout_ms"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// LanguageConfig overrides the built-in runtime profile of one language
type LanguageConfig struct {
	Image       string            `mapstructure:"image"`
	Version     string            `mapstructure:"version"`
	Environment map[string]string `mapstructure:"environment"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CODEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.mcp_enabled", true)

	v.SetDefault("sandbox.backend", BackendRemote)
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.timeout_sec", 5)
	v.SetDefault("sandbox.memory_mb", 256)
	v.SetDefault("sandbox.cpus", 0.5)
	v.SetDefault("sandbox.pids_limit", 64)
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.max_output_kb", 64)
	v.SetDefault("sandbox.workspace_root", "")

	v.SetDefault("remote.url", "https://emkc.org/api/v2/piston/execute")
	v.SetDefault("remote.request_timeout_sec", 15)
	v.SetDefault("remote.run_timeout_ms", 0)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.CPUs <= 0 {
		return fmt.Errorf("sandbox.cpus must be positive, got: %g", c.Sandbox.CPUs)
	}

	if c.Sandbox.PIDsLimit <= 0 {
		return fmt.Errorf("sandbox.pids_limit must be positive, got: %d", c.Sandbox.PIDsLimit)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	supportedBackends := map[string]bool{
		BackendRemote: true,
		BackendDocker: true,
		BackendPodman: true,
		BackendLocal:  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.Backend == BackendRemote {
		if c.Remote.URL == "" {
			return errors.New("remote.url is required for the remote backend")
		}
		if c.Remote.RequestTimeoutSec <= 0 {
			return fmt.Errorf("remote.request_timeout_sec must be positive, got: %d", c.Remote.RequestTimeoutSec)
		}
		if c.Remote.RunTimeoutMS < 0 {
			return fmt.Errorf("remote.run_timeout_ms must not be negative, got: %d", c.Remote.RunTimeoutMS)
		}
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetRemoteRunTimeout returns the run_timeout requested from the remote service, zero when unset
func (c *Config) GetRemoteRunTimeout() time.Duration {
	return time.Duration(c.Remote.RunTimeoutMS) * time.Millisecond
}

// GetRemoteTimeout returns the HTTP timeout used against the remote execution service
func (c *Config) GetRemoteTimeout() time.Duration {
	return time.Duration(c.Remote.RequestTimeoutSec) * time.Second
}
