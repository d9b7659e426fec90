package session

import (
	"fmt"
	"sort"
	"time"
)

// StartPolicy decides how many sensors must be attached before a game may
// start.
type StartPolicy int

const (
	// StartWithAnySensor allows starting with a partial roster, as long as
	// at least one sensor is connected. This is the default: multi games
	// are playable before all eight slots fill.
	StartWithAnySensor StartPolicy = iota

	// StartWithFullRoster requires every sensor slot to be filled.
	StartWithFullRoster
)

// Manager owns the session state machine and relay logic. It is safe for
// concurrent use: the registry guards its indexes with its own lock, and
// each session guards its state with a per-session mutex, so operations on
// unrelated sessions never contend. No operation blocks on transport I/O
// while holding a session lock; relaying is hand-off and return.
type Manager struct {
	registry    *Registry
	startPolicy StartPolicy

	// now is swappable in tests.
	now func() time.Time
}

// NewManager creates a session manager with the default start policy.
func NewManager() *Manager {
	return NewManagerWithPolicy(StartWithAnySensor)
}

// NewManagerWithPolicy creates a session manager with an explicit start
// admission policy.
func NewManagerWithPolicy(policy StartPolicy) *Manager {
	return &Manager{
		registry:    NewRegistry(),
		startPolicy: policy,
		now:         time.Now,
	}
}

// CreateSession creates a session owned by the given host connection and
// returns its public projection, including the pairing code sensors will
// type.
func (m *Manager) CreateSession(gameID string, gameType GameType, hostConnID, hostAddr string) (*SessionInfo, error) {
	sess, err := m.registry.Create(gameID, gameType, hostConnID, hostAddr)
	if err != nil {
		return nil, err
	}

	return &SessionInfo{
		SessionID:   sess.ID,
		SessionCode: sess.Code,
		GameType:    sess.GameType,
		MaxSensors:  sess.MaxSensors,
	}, nil
}

// ConnectSensor admits a sensor connection into the session with the given
// code. Capacity is checked and the sensor inserted under the session lock,
// so two sensors racing for the last slot cannot both win. Sensor IDs are
// sequential and never reused within a session, keeping relay targets
// unambiguous even after a disconnect and rejoin.
func (m *Manager) ConnectSensor(code, connID, addr string, device DeviceInfo) (*ConnectResult, error) {
	sess, err := m.registry.FindByCode(code)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.State == StateEnded {
		sess.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if len(sess.Sensors) >= sess.MaxSensors {
		sess.mu.Unlock()
		return nil, ErrSessionFull
	}

	now := m.now()
	sess.nextSensorNum++
	sensorID := fmt.Sprintf("sensor%d", sess.nextSensorNum)
	sess.Sensors[sensorID] = &SensorConn{
		ID:          sensorID,
		ConnID:      connID,
		Addr:        addr,
		DeviceInfo:  device,
		ConnectedAt: now,
		LastSeenAt:  now,
		nextSeq:     1,
	}
	sess.LastActivityAt = now

	// Forward-only transitions; a rejoin during playing stays playing.
	if sess.State == StateCreated {
		sess.State = StateAwaitingSensors
	}
	connected := len(sess.Sensors)
	isReady := connected == sess.MaxSensors
	if isReady && sess.State == StateAwaitingSensors {
		sess.State = StateReady
	}

	sensorIDs := make([]string, 0, connected)
	for id := range sess.Sensors {
		sensorIDs = append(sensorIDs, id)
	}
	sort.Strings(sensorIDs)

	result := &ConnectResult{
		SessionID:        sess.ID,
		SensorID:         sensorID,
		GameType:         sess.GameType,
		ConnectedSensors: connected,
		MaxSensors:       sess.MaxSensors,
		IsReady:          isReady,
		SensorIDs:        sensorIDs,
		HostConnID:       sess.Host.ConnID,
	}
	sess.mu.Unlock()

	m.registry.IndexConnection(connID, sess.ID, RoleSensor)

	return result, nil
}

// UpdateSensorData stamps a telemetry reading with its per-sensor sequence
// number and returns the host connection it should be relayed to. Data
// flows as soon as the sensor is connected, not only while playing, so the
// host can render live pre-game feedback.
func (m *Manager) UpdateSensorData(code, sensorID string, payload *Telemetry) (*RelayResult, error) {
	sess, err := m.registry.FindByCode(code)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.State == StateEnded {
		return nil, ErrSessionNotFound
	}
	sensor, ok := sess.Sensors[sensorID]
	if !ok {
		return nil, ErrSensorNotFound
	}

	now := m.now()
	payload.SessionCode = sess.Code
	payload.SensorID = sensorID
	payload.Seq = sensor.nextSeq
	sensor.nextSeq++
	sensor.LastSeenAt = now
	sess.LastActivityAt = now

	return &RelayResult{
		HostConnID: sess.Host.ConnID,
		Payload:    payload,
	}, nil
}

// StartGame transitions a session to playing and returns the roster the
// game should run with. The admission policy decides whether a partial
// roster is acceptable.
func (m *Manager) StartGame(sessionID string) (*StartResult, error) {
	sess, err := m.registry.FindByID(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.State == StateEnded {
		return nil, ErrSessionNotFound
	}
	if len(sess.Sensors) == 0 {
		return nil, ErrNoSensors
	}
	if m.startPolicy == StartWithFullRoster && len(sess.Sensors) < sess.MaxSensors {
		return nil, ErrRosterIncomplete
	}

	sess.State = StatePlaying
	sess.LastActivityAt = m.now()

	sensorIDs := make([]string, 0, len(sess.Sensors))
	sensorConns := make(map[string]string, len(sess.Sensors))
	for id, sensor := range sess.Sensors {
		sensorIDs = append(sensorIDs, id)
		sensorConns[id] = sensor.ConnID
	}
	sort.Strings(sensorIDs)

	return &StartResult{
		GameType:      sess.GameType,
		SensorIDs:     sensorIDs,
		SensorConnIDs: sensorConns,
	}, nil
}

// Disconnect handles a transport disconnect notification. Unknown
// connections are a no-op so replayed notifications never error. A host
// disconnect ends the session; a sensor disconnect frees a capacity slot
// but leaves the session reachable by code so a device can rejoin.
func (m *Manager) Disconnect(connID string) (*DisconnectEvent, error) {
	sessionID, role, ok := m.registry.LookupConnection(connID)
	if !ok {
		return nil, nil
	}

	sess, err := m.registry.FindByID(sessionID)
	if err != nil {
		// Session already torn down; drop the stale index entry.
		m.registry.UnindexConnection(connID)
		return nil, nil
	}

	if role == RoleHost {
		sess.mu.Lock()
		if sess.State == StateEnded {
			sess.mu.Unlock()
			m.registry.UnindexConnection(connID)
			return nil, nil
		}
		sess.State = StateEnded
		affected := make([]string, 0, len(sess.Sensors))
		for _, sensor := range sess.Sensors {
			affected = append(affected, sensor.ConnID)
		}
		sess.mu.Unlock()

		m.registry.Remove(sess.ID)

		return &DisconnectEvent{
			Type:                  HostDisconnected,
			SessionID:             sess.ID,
			AffectedSensorConnIDs: affected,
		}, nil
	}

	sess.mu.Lock()
	if sess.State == StateEnded {
		sess.mu.Unlock()
		m.registry.UnindexConnection(connID)
		return nil, nil
	}
	var gone *SensorConn
	for _, sensor := range sess.Sensors {
		if sensor.ConnID == connID {
			gone = sensor
			break
		}
	}
	if gone == nil {
		sess.mu.Unlock()
		m.registry.UnindexConnection(connID)
		return nil, nil
	}
	delete(sess.Sensors, gone.ID)
	remaining := len(sess.Sensors)
	hostConnID := sess.Host.ConnID
	sess.mu.Unlock()

	m.registry.UnindexConnection(connID)

	return &DisconnectEvent{
		Type:             SensorDisconnected,
		SessionID:        sess.ID,
		HostConnID:       hostConnID,
		SensorID:         gone.ID,
		RemainingSensors: remaining,
	}, nil
}

// Close ends a session explicitly and returns the connections that should
// be notified. Closing an unknown session returns ErrSessionNotFound.
func (m *Manager) Close(sessionID string) (*EndedSession, error) {
	sess, err := m.registry.FindByID(sessionID)
	if err != nil {
		return nil, err
	}

	ended := m.endSession(sess)
	if ended == nil {
		return nil, ErrSessionNotFound
	}
	return ended, nil
}

// Sweep reaps sessions idle for longer than ttl and returns what was torn
// down so the caller can notify still-connected clients. A failure to end
// one session never aborts the sweep of the rest.
func (m *Manager) Sweep(now time.Time, ttl time.Duration) []*EndedSession {
	var ended []*EndedSession

	for _, sess := range m.registry.List() {
		sess.mu.Lock()
		expired := sess.State != StateEnded && now.Sub(sess.LastActivityAt) > ttl
		sess.mu.Unlock()
		if !expired {
			continue
		}
		if e := m.endSession(sess); e != nil {
			ended = append(ended, e)
		}
	}

	return ended
}

// endSession marks a session ended and removes it from the registry. It
// returns nil if the session was already ended by a concurrent teardown.
func (m *Manager) endSession(sess *Session) *EndedSession {
	sess.mu.Lock()
	if sess.State == StateEnded {
		sess.mu.Unlock()
		return nil
	}
	sess.State = StateEnded
	ended := &EndedSession{
		SessionID:     sess.ID,
		SessionCode:   sess.Code,
		HostConnID:    sess.Host.ConnID,
		SensorConnIDs: make([]string, 0, len(sess.Sensors)),
	}
	for _, sensor := range sess.Sensors {
		ended.SensorConnIDs = append(ended.SensorConnIDs, sensor.ConnID)
	}
	sess.mu.Unlock()

	m.registry.Remove(sess.ID)
	return ended
}

// Stats aggregates a point-in-time snapshot over all active sessions.
func (m *Manager) Stats() *Stats {
	stats := &Stats{
		ByGameType: make(map[GameType]int),
		ByState:    make(map[State]int),
	}

	for _, sess := range m.registry.List() {
		sess.mu.Lock()
		stats.TotalSessions++
		stats.ByGameType[sess.GameType]++
		stats.ByState[sess.State]++
		stats.TotalSensorsConnected += len(sess.Sensors)
		sess.mu.Unlock()
	}

	return stats
}

// GetSession returns a monitoring summary for one session.
func (m *Manager) GetSession(sessionID string) (*Summary, error) {
	sess, err := m.registry.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	return m.summarize(sess), nil
}

// ListSessions returns monitoring summaries for all active sessions,
// ordered by creation time.
func (m *Manager) ListSessions() []*Summary {
	sessions := m.registry.List()
	summaries := make([]*Summary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, m.summarize(sess))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

func (m *Manager) summarize(sess *Session) *Summary {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return &Summary{
		SessionID:        sess.ID,
		SessionCode:      sess.Code,
		GameID:           sess.GameID,
		GameType:         sess.GameType,
		State:            sess.State,
		ConnectedSensors: len(sess.Sensors),
		MaxSensors:       sess.MaxSensors,
		CreatedAt:        sess.CreatedAt,
		LastActivityAt:   sess.LastActivityAt,
	}
}
