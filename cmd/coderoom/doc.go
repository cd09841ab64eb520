// Package main is the entry point for the coderoom server.
//
// coderoom validates untrusted code (JavaScript, Python, C, C++, Java), runs
// it in a sandbox backend (remote execution service, docker or podman) and
// returns the captured output. The same process relays collaborative editing
// events between browser clients over websockets and exposes the pipeline as
// an MCP tool.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
