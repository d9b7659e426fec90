// Package session implements the pairing and relay core of the sensor game
// hub: ephemeral sessions identified by short human-typed codes, sensor
// admission up to a capacity fixed by game type, telemetry relay from
// sensors to the host, and idle-session expiry.
//
// Core Types:
//
// Manager is the state machine and relay front door: create, connect,
// relay, start, disconnect, stats. Registry is the authoritative session
// table behind it, indexed by code and by ID with a reverse index from
// connection identity to session and role. Sweeper reaps idle sessions on
// a single periodic ticker.
//
// Session Codes:
//
// Sessions pair through 4-character codes drawn from an alphabet that
// excludes visually ambiguous glyphs (0/O, 1/I). Codes are generated with
// cryptographic randomness and reserved under the registry lock, so codes
// of concurrently created sessions are always distinct. Codes of ended
// sessions may be recycled once the session is removed.
//
// Lifecycle:
//
// created -> awaiting_sensors (first sensor joins) -> ready (capacity
// reached) -> playing (game started) -> ended (host disconnect, explicit
// close, or TTL expiry). Transitions are forward-only and ended is
// terminal. A sensor disconnect frees a capacity slot without demoting the
// session, so a device can rejoin with the same code while the session is
// alive.
//
// Concurrency:
//
// The registry's indexes are guarded by one coarse lock; each session's
// state is guarded by its own mutex, so operations on unrelated sessions
// never contend and check-then-mutate sequences (capacity check plus
// insert, state check plus transition) stay atomic. No operation blocks on
// transport I/O while holding a session lock; relaying hands off the
// payload and returns.
//
// Usage:
//
//	manager := session.NewManager()
//
//	info, err := manager.CreateSession("quick-draw", session.GameTypeDual, hostConnID, hostAddr)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// A sensor joins with the on-screen code.
//	conn, err := manager.ConnectSensor(info.SessionCode, sensorConnID, sensorAddr, device)
//
//	// Telemetry is stamped and handed back for relay to the host.
//	relay, err := manager.UpdateSensorData(info.SessionCode, conn.SensorID, payload)
//
// Expiry:
//
//	sweeper := session.NewSweeper(manager, time.Minute, 30*time.Minute, notify)
//	go sweeper.Run(ctx)
package session
