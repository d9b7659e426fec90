package websocket

import (
	"encoding/json"

	"github.com/wricardo/sensor-game-hub/session"
)

// Client-to-server event names.
const (
	EventCreateSession = "create-session"
	EventConnectSensor = "connect-sensor"
	EventSensorData    = "sensor-data"
	EventStartGame     = "start-game"
	EventPing          = "ping"
)

// Server-to-client event names.
const (
	EventSessionCreated     = "session-created"
	EventConnected          = "connected"
	EventSensorConnected    = "sensor-connected"
	EventGameReady          = "game-ready"
	EventSensorUpdate       = "sensor-update"
	EventGameStarted        = "game-started"
	EventHostDisconnected   = "host-disconnected"
	EventSensorDisconnected = "sensor-disconnected"
	EventSessionEnded       = "session-ended"
	EventSensorError        = "sensor-error"
	EventPong               = "pong"
)

// Envelope frames every message on the wire: an event name plus an
// event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreateSessionRequest is sent by a host to open a new session.
type CreateSessionRequest struct {
	GameID   string           `json:"gameId"`
	GameType session.GameType `json:"gameType"`
}

// SessionCreatedPayload acknowledges a create-session request.
type SessionCreatedPayload struct {
	Success bool                 `json:"success"`
	Session *session.SessionInfo `json:"session,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// ConnectSensorRequest is sent by a sensor device with the code typed by
// the player.
type ConnectSensorRequest struct {
	SessionCode string             `json:"sessionCode"`
	DeviceInfo  session.DeviceInfo `json:"deviceInfo"`
}

// ConnectedPayload acknowledges a connect-sensor request.
type ConnectedPayload struct {
	Success    bool                   `json:"success"`
	Connection *session.ConnectResult `json:"connection,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// SensorConnectedNotice tells the host a sensor has joined.
type SensorConnectedNotice struct {
	SensorID         string `json:"sensorId"`
	ConnectedSensors int    `json:"connectedSensors"`
	MaxSensors       int    `json:"maxSensors"`
	IsReady          bool   `json:"isReady"`
}

// GameReadyNotice tells the host every sensor slot is filled.
type GameReadyNotice struct {
	SessionID        string           `json:"sessionId"`
	GameType         session.GameType `json:"gameType"`
	ConnectedSensors []string         `json:"connectedSensors"`
}

// SensorDataRequest carries one telemetry reading from a sensor.
type SensorDataRequest struct {
	SessionCode string             `json:"sessionCode"`
	SensorID    string             `json:"sensorId"`
	SensorData  *session.Telemetry `json:"sensorData"`
}

// StartGameRequest is sent by the host to begin play.
type StartGameRequest struct {
	SessionID string `json:"sessionId"`
}

// GameStartedPayload acknowledges start-game to the host and, with SensorID
// set, announces the start to each sensor.
type GameStartedPayload struct {
	Success  bool                 `json:"success"`
	Game     *session.StartResult `json:"game,omitempty"`
	SensorID string               `json:"sensorId,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// HostDisconnectedNotice tells sensors their session's host is gone.
type HostDisconnectedNotice struct {
	SessionID string `json:"sessionId"`
}

// SensorDisconnectedNotice tells the host a sensor dropped.
type SensorDisconnectedNotice struct {
	SensorID         string `json:"sensorId"`
	RemainingSensors int    `json:"remainingSensors"`
}

// SessionEndedNotice tells both sides a session was torn down by expiry or
// an explicit close.
type SessionEndedNotice struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

// SensorErrorNotice reports a failed sensor-data update back to the sensor.
type SensorErrorNotice struct {
	Error string `json:"error"`
}

// PongPayload answers a ping with the server clock.
type PongPayload struct {
	Pong int64 `json:"pong"`
}
