package session

import "errors"

var (
	// ErrInvalidGameType is returned when a session is created with an
	// unknown game type.
	ErrInvalidGameType = errors.New("invalid game type")

	// ErrSessionNotFound is returned when no active session matches the
	// given code or ID. Ended sessions are reported as not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSensorNotFound is returned when a telemetry update names a sensor
	// that is not attached to the session.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrSessionFull is returned when a sensor tries to join a session that
	// already has MaxSensors sensors attached.
	ErrSessionFull = errors.New("session full")

	// ErrNoSensors is returned when a game is started before any sensor
	// has connected.
	ErrNoSensors = errors.New("no sensors connected")

	// ErrRosterIncomplete is returned under the full-roster start policy
	// when a game is started before every sensor slot is filled.
	ErrRosterIncomplete = errors.New("sensor roster incomplete")

	// ErrCodeSpaceExhausted is returned when code generation keeps
	// colliding with active sessions, signaling the registry is near
	// saturation of the code space.
	ErrCodeSpaceExhausted = errors.New("session code space exhausted")
)
