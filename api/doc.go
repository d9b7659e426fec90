// Package api provides the HTTP REST API for the Sensor Game Hub.
//
// The api package implements:
//   - Monitoring endpoints for hub statistics and session listings
//   - Admin endpoints for inspecting and closing sessions
//   - WebSocket upgrade handling (delegated to the transport hub)
//   - Health check
//
// Endpoints:
//
// Monitoring:
//   - GET /api/stats - Aggregate hub statistics
//   - GET /api/sessions - List active sessions (sort, order, limit params)
//   - GET /api/sessions/{id} - Get a session summary
//
// Admin:
//   - DELETE /api/sessions/{id} - Force-close a session
//
// Transport:
//   - GET /ws - WebSocket upgrade for hosts and sensors
//
// Health:
//   - GET /health - Liveness check
//
// Request/Response Format:
//
// All endpoints return JSON. Session listings support query parameters:
//
//	GET /api/sessions?sort=activity&order=desc&limit=10
//
// Usage:
//
//	server := api.NewServer(manager, hub)
//	http.ListenAndServe(":3000", server)
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "session not found"
//	}
package api
