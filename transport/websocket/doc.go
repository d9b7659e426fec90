// Package websocket provides the WebSocket transport for the sensor game
// hub.
//
// The package implements:
//   - Per-connection opaque identities assigned at upgrade time
//   - JSON event envelopes mirroring the session operations
//   - Point-to-point pushes from sensors to their host and back
//   - Connection lifecycle management and disconnect fan-out
//
// Architecture:
//
// A central Hub owns every live connection. Each connection is handled by a
// dedicated read goroutine that parses envelopes and invokes the session
// manager, and a write goroutine that drains a buffered send queue with
// ping/pong keepalives. The hub never waits for delivery: a push is handed
// to the queue and the call returns, so a slow or gone destination can
// never stall a session operation.
//
// Message Protocol:
//
// Every frame is {"event": name, "data": payload}. Hosts send
// create-session and start-game; sensors send connect-sensor and
// sensor-data; either side may ping. The hub answers with acknowledgment
// events (session-created, connected, game-started, pong) and pushes
// notifications across the session (sensor-connected, game-ready,
// sensor-update, host-disconnected, sensor-disconnected, session-ended).
//
// Usage:
//
//	manager := session.NewManager()
//	hub := websocket.NewHub(manager)
//	go hub.Run()
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Disconnects:
//
// When a connection drops, the hub runs the manager's disconnect handling
// and notifies the other side of the session: sensors learn their host is
// gone, hosts learn a sensor dropped. Replayed disconnects are no-ops.
package websocket
