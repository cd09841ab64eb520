// Package httpserver exposes the execution pipeline, the collaboration relay
// and the operational endpoints over HTTP.
//
// Routes:
//
//	POST /api/exec     run or preview a request
//	GET  /api/ping     liveness
//	GET  /api/socket   websocket upgrade into the collaboration hub
//	GET  /healthz      liveness for orchestrators
//	GET  /metrics      prometheus metrics
//	     /mcp          MCP streamable HTTP transport, when enabled
package httpserver
