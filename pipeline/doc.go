// Package pipeline orchestrates one execution request end to end.
//
// A request is checked for shape, its language is resolved through the
// registry and every source file is screened by the language's validator.
// Rejections happen before any workspace or sandbox resource exists. Preview
// requests for languages that support it stop at the dependency resolver;
// everything else is materialized into a fresh workspace, executed once by
// the configured sandbox backend, normalized, and the workspace is removed
// on every exit path.
//
// Failures are reported as *Error values carrying a Kind that transports
// (HTTP, MCP) map to their own status codes.
package pipeline
