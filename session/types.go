package session

import (
	"sync"
	"time"
)

// GameType determines how many sensor devices a session admits.
type GameType string

const (
	GameTypeSolo  GameType = "solo"
	GameTypeDual  GameType = "dual"
	GameTypeMulti GameType = "multi"
)

// maxSensorsByType maps each game type to its sensor capacity.
var maxSensorsByType = map[GameType]int{
	GameTypeSolo:  1,
	GameTypeDual:  2,
	GameTypeMulti: 8,
}

// Valid reports whether the game type is a known enum value.
func (g GameType) Valid() bool {
	_, ok := maxSensorsByType[g]
	return ok
}

// MaxSensors returns the sensor capacity for the game type, or 0 if unknown.
func (g GameType) MaxSensors() int {
	return maxSensorsByType[g]
}

// State is the lifecycle state of a session. Transitions are forward-only;
// StateEnded is terminal.
type State string

const (
	StateCreated         State = "created"
	StateAwaitingSensors State = "awaiting_sensors"
	StateReady           State = "ready"
	StatePlaying         State = "playing"
	StateEnded           State = "ended"
)

// Role identifies which side of a session a connection belongs to.
type Role string

const (
	RoleHost   Role = "host"
	RoleSensor Role = "sensor"
)

// DeviceInfo is self-reported metadata from a sensor device.
type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// HostConn is the display-side connection that owns a session.
type HostConn struct {
	ConnID      string    `json:"connId"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// SensorConn is a mobile-side connection admitted into a session.
type SensorConn struct {
	ID          string     `json:"id"`
	ConnID      string     `json:"connId"`
	Addr        string     `json:"addr"`
	DeviceInfo  DeviceInfo `json:"deviceInfo"`
	ConnectedAt time.Time  `json:"connectedAt"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`

	// nextSeq is the sequence number stamped on the next telemetry relay.
	nextSeq uint64
}

// Session is one pairing between a host and up to MaxSensors sensor devices.
// All mutable fields are guarded by mu; the registry indexes are guarded by
// the registry's own lock so unrelated sessions never contend.
type Session struct {
	mu sync.Mutex

	ID         string
	Code       string
	GameID     string
	GameType   GameType
	MaxSensors int
	State      State
	Host       HostConn
	Sensors    map[string]*SensorConn

	CreatedAt      time.Time
	LastActivityAt time.Time

	// nextSensorNum drives sequential sensor IDs. It never decreases, so a
	// sensor ID is never reused within the session even after a disconnect.
	nextSensorNum int
}

// Orientation is a device orientation reading in degrees.
type Orientation struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Vector3 is a three-axis motion reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Telemetry is a single sensor reading relayed from a sensor to its host.
// SensorID and Seq are stamped by the manager before relay.
type Telemetry struct {
	SessionCode  string       `json:"sessionCode,omitempty"`
	SensorID     string       `json:"sensorId,omitempty"`
	Orientation  *Orientation `json:"orientation,omitempty"`
	Acceleration *Vector3     `json:"acceleration,omitempty"`
	RotationRate *Orientation `json:"rotationRate,omitempty"`
	Timestamp    int64        `json:"timestamp,omitempty"`
	Seq          uint64       `json:"seq,omitempty"`
}

// SessionInfo is the public projection returned when a session is created.
type SessionInfo struct {
	SessionID   string   `json:"sessionId"`
	SessionCode string   `json:"sessionCode"`
	GameType    GameType `json:"gameType"`
	MaxSensors  int      `json:"maxSensors"`
}

// ConnectResult is returned when a sensor is admitted into a session.
type ConnectResult struct {
	SessionID        string   `json:"sessionId"`
	SensorID         string   `json:"sensorId"`
	GameType         GameType `json:"gameType"`
	ConnectedSensors int      `json:"connectedSensors"`
	MaxSensors       int      `json:"maxSensors"`
	IsReady          bool     `json:"isReady"`
	SensorIDs        []string `json:"sensorIds,omitempty"`

	// HostConnID lets the transport notify the host of the new sensor. Not
	// part of the wire shape.
	HostConnID string `json:"-"`
}

// RelayResult tells the transport where to forward a telemetry reading.
type RelayResult struct {
	HostConnID string
	Payload    *Telemetry
}

// StartResult is returned when a game starts.
type StartResult struct {
	GameType  GameType `json:"gameType"`
	SensorIDs []string `json:"sensorIds"`

	// SensorConnIDs maps sensor IDs to their connection identities so the
	// transport can notify each sensor. Not part of the wire shape.
	SensorConnIDs map[string]string `json:"-"`
}

// DisconnectType distinguishes host and sensor disconnect events.
type DisconnectType string

const (
	HostDisconnected   DisconnectType = "host_disconnected"
	SensorDisconnected DisconnectType = "sensor_disconnected"
)

// DisconnectEvent describes the fallout of a connection going away, so the
// transport can notify the other side of the session.
type DisconnectEvent struct {
	Type      DisconnectType
	SessionID string

	// Host disconnect: sensors that must be told the session is gone.
	AffectedSensorConnIDs []string

	// Sensor disconnect: host to notify plus what remains.
	HostConnID       string
	SensorID         string
	RemainingSensors int
}

// EndedSession describes a session torn down by expiry or explicit close.
type EndedSession struct {
	SessionID     string
	SessionCode   string
	HostConnID    string
	SensorConnIDs []string
}

// Stats is a read-only aggregate over all active sessions.
type Stats struct {
	TotalSessions         int              `json:"totalSessions"`
	ByGameType            map[GameType]int `json:"byGameType"`
	ByState               map[State]int    `json:"byState"`
	TotalSensorsConnected int              `json:"totalSensorsConnected"`
}

// Summary is a monitoring view of one session, exposed over the REST API.
type Summary struct {
	SessionID        string    `json:"sessionId"`
	SessionCode      string    `json:"sessionCode"`
	GameID           string    `json:"gameId"`
	GameType         GameType  `json:"gameType"`
	State            State     `json:"state"`
	ConnectedSensors int       `json:"connectedSensors"`
	MaxSensors       int       `json:"maxSensors"`
	CreatedAt        time.Time `json:"createdAt"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
}
