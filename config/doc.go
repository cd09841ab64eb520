// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and CODEROOM_* environment variables. It
// covers the HTTP server, the sandbox backend and its resource limits, the
// remote execution service, logging, and per-language overrides.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox backend: %s\n", cfg.Sandbox.Backend)
package config
