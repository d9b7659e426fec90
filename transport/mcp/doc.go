// Package mcp provides Model Context Protocol server implementation for the Sensor Game Hub.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for hub monitoring and administration
//   - Thin proxying to the REST API
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - hub_stats: Aggregate statistics across all sessions
//   - list_sessions: List all active sessions with sorting and limits
//   - get_session: Get specific session details
//   - close_session: Force-close a session and notify its clients
//
// Architecture:
//
// The client does not hold any session state of its own. Every tool call
// is translated into an HTTP request against the hub's REST API, so the
// MCP process can run beside the hub or on a separate machine.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//	server.ServeStdio(client.GetMCPServer())
//
// AI Integration:
//
// The MCP interface enables AI agents to:
//   - Monitor active sessions and sensor counts
//   - Inspect individual sessions by ID
//   - Tear down stale or misbehaving sessions
package mcp
