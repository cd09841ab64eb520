// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the execution pipeline as the execute_code
// tool using the mark3labs/mcp-go library. Requests go through the same
// validation, preview and sandbox steps as the HTTP endpoint.
//
// The server is served over stdio for local agents, or mounted into the HTTP
// router through the streamable HTTP transport.
//
// Usage:
//
//	server := mcpserver.New(logger, registry, service)
//	err := server.ServeStdio() // or router.Handle("/mcp", server.HTTPHandler())
package mcpserver
