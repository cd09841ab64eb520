package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       3001,
			MCPEnabled: true,
		},
		Sandbox: SandboxConfig{
			Backend:     BackendDocker,
			TimeoutSec:  5,
			MemoryMB:    256,
			CPUs:        0.5,
			PIDsLimit:   64,
			MaxOutputKB: 64,
		},
		Remote: RemoteConfig{
			URL:               "http://piston.local/api/v2/execute",
			RequestTimeoutSec: 15,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Languages: map[string]LanguageConfig{
			"python": {
				Image: "python:3.11-slim",
			},
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	t.Run("InvalidServerPort", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.port")
	})

	t.Run("InvalidSandboxTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.TimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.timeout_sec must be positive")
	})

	t.Run("InvalidSandboxMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MemoryMB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.memory_mb must be positive")
	})

	t.Run("InvalidSandboxCPUs", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.CPUs = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.cpus must be positive")
	})

	t.Run("InvalidLoggingMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Mode = "invalid_mode"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid_level"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.level")
	})

	t.Run("RemoteBackendRequiresURL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = BackendRemote
		cfg.Remote.URL = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.url is required")
	})

	t.Run("ValidBackendWhenLocalEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = BackendLocal
		cfg.Sandbox.EnableLocalBackend = true

		require.NoError(t, cfg.validate())
	})

	t.Run("NegativeRemoteRunTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = BackendRemote
		cfg.Remote.RunTimeoutMS = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.run_timeout_ms must not be negative")
	})

	t.Run("InvalidBackendWhenLocalNotEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = BackendLocal

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "kubernetes"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})
}

func TestNewDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.True(t, cfg.Server.MCPEnabled)
	assert.Equal(t, BackendRemote, cfg.Sandbox.Backend)
	assert.Equal(t, 5, cfg.Sandbox.TimeoutSec)
	assert.Equal(t, 256, cfg.Sandbox.MemoryMB)
	assert.InDelta(t, 0.5, cfg.Sandbox.CPUs, 0.0001)
	assert.False(t, cfg.Sandbox.NetworkEnabled)
	assert.Equal(t, "https://emkc.org/api/v2/piston/execute", cfg.Remote.URL)
	assert.Equal(t, 5*time.Second, cfg.GetTimeout())
	assert.Equal(t, 15*time.Second, cfg.GetRemoteTimeout())
	assert.Zero(t, cfg.GetRemoteRunTimeout())
}

func TestNewFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `
server:
  port: 9000
  allowed_origins: ["http://localhost:3000"]
sandbox:
  backend: docker
  timeout_sec: 3
languages:
  python:
    image: python:3.12-slim
    environment:
      PYTHONUNBUFFERED: "1"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Setenv("CODEROOM_SANDBOX_MEMORY_MB", "128")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, BackendDocker, cfg.Sandbox.Backend)
	assert.Equal(t, 3, cfg.Sandbox.TimeoutSec)
	assert.Equal(t, 128, cfg.Sandbox.MemoryMB)
	require.Contains(t, cfg.Languages, "python")
	assert.Equal(t, "python:3.12-slim", cfg.Languages["python"].Image)
}

func TestNewInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sandbox:\n  timeout_sec: -1\n"), 0o600))

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox.timeout_sec must be positive")
}
