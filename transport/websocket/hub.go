package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/sensor-game-hub/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Telemetry envelopes are
	// small; this leaves headroom for device info strings.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Sensor devices connect from arbitrary origins (phones on the
		// LAN, ngrok tunnels), so origin checks stay open.
		return true
	},
}

// Client is one WebSocket connection, host or sensor. The role is decided
// by which events it sends, not at connect time.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
	addr string
}

// Hub owns all live connections and routes session events between them and
// the session manager. Pushes to a connection are hand-off and return: a
// full send queue is an error, never a block.
type Hub struct {
	manager *session.Manager

	mu      sync.RWMutex
	clients map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client
}

// NewHub creates a hub on top of the given session manager.
func NewHub(manager *session.Manager) *Hub {
	return &Hub{
		manager:    manager,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's connection lifecycle loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and assigns it
// an opaque connection identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
		addr: r.RemoteAddr,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// Send marshals an event envelope and hands it to the connection's write
// queue. A missing connection or a full queue is reported as an error; the
// message is never buffered beyond the queue.
func (h *Hub) Send(connID, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	// The send queue is closed under the write lock, so holding the read
	// lock across this non-blocking hand-off keeps it safe against a
	// concurrent unregister.
	h.mu.RLock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.RUnlock()
		return fmt.Errorf("connection %s not available", connID)
	}

	select {
	case client.send <- frame:
		h.mu.RUnlock()
		return nil
	default:
		h.mu.RUnlock()
		// Slow consumer. Drop the connection instead of queueing.
		go func() { h.unregister <- client }()
		return fmt.Errorf("connection %s send queue full", connID)
	}
}

// NotifyEnded pushes a session-ended notice to every connection attached to
// the torn-down sessions. Best-effort: a gone connection is logged, not
// fatal.
func (h *Hub) NotifyEnded(ended []*session.EndedSession, reason string) {
	for _, e := range ended {
		notice := SessionEndedNotice{SessionID: e.SessionID, Reason: reason}
		if err := h.Send(e.HostConnID, EventSessionEnded, notice); err != nil {
			log.Printf("Failed to notify host of ended session %s: %v", e.SessionID, err)
		}
		for _, connID := range e.SensorConnIDs {
			if err := h.Send(connID, EventSessionEnded, notice); err != nil {
				log.Printf("Failed to notify sensor of ended session %s: %v", e.SessionID, err)
			}
		}
	}
}

// registerClient adds a connection to the hub.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Client %s connected from %s (total clients: %d)", client.id, client.addr, total)
}

// unregisterClient removes a connection and runs disconnect handling for
// it. Safe to call more than once per client; only the first call acts.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	remaining := len(h.clients)
	close(client.send)
	h.mu.Unlock()

	log.Printf("Client %s disconnected (remaining clients: %d)", client.id, remaining)

	event, err := h.manager.Disconnect(client.id)
	if err != nil {
		log.Printf("Disconnect handling for %s failed: %v", client.id, err)
		return
	}
	if event == nil {
		return
	}

	switch event.Type {
	case session.HostDisconnected:
		for _, connID := range event.AffectedSensorConnIDs {
			notice := HostDisconnectedNotice{SessionID: event.SessionID}
			if err := h.Send(connID, EventHostDisconnected, notice); err != nil {
				log.Printf("Failed to notify sensor %s of host disconnect: %v", connID, err)
			}
		}
	case session.SensorDisconnected:
		notice := SensorDisconnectedNotice{
			SensorID:         event.SensorID,
			RemainingSensors: event.RemainingSensors,
		}
		if err := h.Send(event.HostConnID, EventSensorDisconnected, notice); err != nil {
			log.Printf("Failed to notify host of sensor disconnect: %v", err)
		}
	}
}

// handleMessage dispatches one inbound envelope to the matching manager
// operation and replies to the caller. Errors are returned to the sender as
// a failed acknowledgment; nothing propagates past the hub.
func (h *Hub) handleMessage(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Client %s sent malformed message: %v", c.id, err)
		return
	}

	switch env.Event {
	case EventCreateSession:
		h.handleCreateSession(c, env.Data)
	case EventConnectSensor:
		h.handleConnectSensor(c, env.Data)
	case EventSensorData:
		h.handleSensorData(c, env.Data)
	case EventStartGame:
		h.handleStartGame(c, env.Data)
	case EventPing:
		h.reply(c, EventPong, PongPayload{Pong: time.Now().UnixMilli()})
	default:
		log.Printf("Client %s sent unknown event %q", c.id, env.Event)
	}
}

func (h *Hub) handleCreateSession(c *Client, data json.RawMessage) {
	var req CreateSessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(c, EventSessionCreated, SessionCreatedPayload{Error: "invalid create-session payload"})
		return
	}

	info, err := h.manager.CreateSession(req.GameID, req.GameType, c.id, c.addr)
	if err != nil {
		log.Printf("Session creation failed for %s: %v", c.id, err)
		h.reply(c, EventSessionCreated, SessionCreatedPayload{Error: err.Error()})
		return
	}

	log.Printf("Session %s created: code=%s game=%s type=%s", info.SessionID, info.SessionCode, req.GameID, info.GameType)
	h.reply(c, EventSessionCreated, SessionCreatedPayload{Success: true, Session: info})
}

func (h *Hub) handleConnectSensor(c *Client, data json.RawMessage) {
	var req ConnectSensorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(c, EventConnected, ConnectedPayload{Error: "invalid connect-sensor payload"})
		return
	}

	result, err := h.manager.ConnectSensor(req.SessionCode, c.id, c.addr, req.DeviceInfo)
	if err != nil {
		log.Printf("Sensor connect failed for code %s: %v", req.SessionCode, err)
		h.reply(c, EventConnected, ConnectedPayload{Error: err.Error()})
		return
	}

	log.Printf("Sensor %s joined session %s (%d/%d)", result.SensorID, result.SessionID, result.ConnectedSensors, result.MaxSensors)
	h.reply(c, EventConnected, ConnectedPayload{Success: true, Connection: result})

	notice := SensorConnectedNotice{
		SensorID:         result.SensorID,
		ConnectedSensors: result.ConnectedSensors,
		MaxSensors:       result.MaxSensors,
		IsReady:          result.IsReady,
	}
	if err := h.Send(result.HostConnID, EventSensorConnected, notice); err != nil {
		log.Printf("Failed to notify host of sensor join: %v", err)
	}

	if result.IsReady {
		ready := GameReadyNotice{
			SessionID:        result.SessionID,
			GameType:         result.GameType,
			ConnectedSensors: result.SensorIDs,
		}
		if err := h.Send(result.HostConnID, EventGameReady, ready); err != nil {
			log.Printf("Failed to notify host of game ready: %v", err)
		}
	}
}

func (h *Hub) handleSensorData(c *Client, data json.RawMessage) {
	var req SensorDataRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(c, EventSensorError, SensorErrorNotice{Error: "invalid sensor-data payload"})
		return
	}
	if req.SensorData == nil {
		req.SensorData = &session.Telemetry{}
	}

	relay, err := h.manager.UpdateSensorData(req.SessionCode, req.SensorID, req.SensorData)
	if err != nil {
		h.reply(c, EventSensorError, SensorErrorNotice{Error: err.Error()})
		return
	}

	if err := h.Send(relay.HostConnID, EventSensorUpdate, relay.Payload); err != nil {
		log.Printf("Failed to relay sensor data to host: %v", err)
	}
}

func (h *Hub) handleStartGame(c *Client, data json.RawMessage) {
	var req StartGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(c, EventGameStarted, GameStartedPayload{Error: "invalid start-game payload"})
		return
	}

	result, err := h.manager.StartGame(req.SessionID)
	if err != nil {
		log.Printf("Game start failed for session %s: %v", req.SessionID, err)
		h.reply(c, EventGameStarted, GameStartedPayload{Error: err.Error()})
		return
	}

	log.Printf("Game started: session=%s type=%s sensors=%d", req.SessionID, result.GameType, len(result.SensorIDs))
	h.reply(c, EventGameStarted, GameStartedPayload{Success: true, Game: result})

	for sensorID, connID := range result.SensorConnIDs {
		started := GameStartedPayload{
			Success:  true,
			SensorID: sensorID,
			Game:     &session.StartResult{GameType: result.GameType, SensorIDs: result.SensorIDs},
		}
		if err := h.Send(connID, EventGameStarted, started); err != nil {
			log.Printf("Failed to notify sensor %s of game start: %v", sensorID, err)
		}
	}
}

// reply pushes an event back to the connection that triggered it.
func (h *Hub) reply(c *Client, event string, payload interface{}) {
	if err := h.Send(c.id, event, payload); err != nil {
		log.Printf("Failed to reply %s to %s: %v", event, c.id, err)
	}
}

// readPump pumps messages from the WebSocket connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		c.hub.handleMessage(c, raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
