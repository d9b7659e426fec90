package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// connRef maps a connection back to the session and role it belongs to.
type connRef struct {
	sessionID string
	role      Role
}

// Registry is the authoritative table of active sessions, indexed by code
// and by ID, plus a reverse index from connection identity to session and
// role. The registry lock only guards the indexes; per-session state is
// guarded by each session's own mutex.
type Registry struct {
	mu     sync.RWMutex
	byCode map[string]*Session
	byID   map[string]*Session
	conns  map[string]connRef
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byCode: make(map[string]*Session),
		byID:   make(map[string]*Session),
		conns:  make(map[string]connRef),
	}
}

// Create validates the game type, reserves a collision-free code, and
// inserts a new session owned by the given host connection. Code generation
// and insertion happen under the registry lock so two concurrent creates
// can never race for the same code.
func (r *Registry) Create(gameID string, gameType GameType, hostConnID, hostAddr string) (*Session, error) {
	if !gameType.Valid() {
		return nil, ErrInvalidGameType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := generateCode(func(candidate string) bool {
		_, taken := r.byCode[candidate]
		return taken
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		Code:       code,
		GameID:     gameID,
		GameType:   gameType,
		MaxSensors: gameType.MaxSensors(),
		State:      StateCreated,
		Host: HostConn{
			ConnID:      hostConnID,
			Addr:        hostAddr,
			ConnectedAt: now,
		},
		Sensors:        make(map[string]*SensorConn),
		CreatedAt:      now,
		LastActivityAt: now,
	}

	r.byCode[code] = sess
	r.byID[sess.ID] = sess
	r.conns[hostConnID] = connRef{sessionID: sess.ID, role: RoleHost}

	return sess, nil
}

// FindByCode retrieves a session by its pairing code. Codes are typed by
// humans, so lookup is case-insensitive.
func (r *Registry) FindByCode(code string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.byCode[strings.ToUpper(code)]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// FindByID retrieves a session by its internal ID.
func (r *Registry) FindByID(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes a session from both indexes and drops every reverse index
// entry pointing at it. Removing a session that is already gone is a no-op,
// so teardown paths can replay safely.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byID[id]
	if !ok {
		return
	}

	delete(r.byID, id)
	delete(r.byCode, sess.Code)
	for connID, ref := range r.conns {
		if ref.sessionID == id {
			delete(r.conns, connID)
		}
	}
}

// IndexConnection records which session and role a connection belongs to.
func (r *Registry) IndexConnection(connID, sessionID string, role Role) {
	r.mu.Lock()
	r.conns[connID] = connRef{sessionID: sessionID, role: role}
	r.mu.Unlock()
}

// LookupConnection resolves a connection to its session and role.
func (r *Registry) LookupConnection(connID string) (sessionID string, role Role, ok bool) {
	r.mu.RLock()
	ref, ok := r.conns[connID]
	r.mu.RUnlock()
	return ref.sessionID, ref.role, ok
}

// UnindexConnection drops a connection from the reverse index. Idempotent.
func (r *Registry) UnindexConnection(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// List returns all active sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.byID))
	for _, sess := range r.byID {
		result = append(result, sess)
	}
	return result
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
