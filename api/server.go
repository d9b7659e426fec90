package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/sensor-game-hub/session"
	"github.com/wricardo/sensor-game-hub/transport/websocket"
)

// Server exposes the monitoring and admin REST surface beside the
// WebSocket transport.
type Server struct {
	manager *session.Manager
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. The hub may be nil in contexts that
// only need the read-only endpoints.
func NewServer(manager *session.Manager, hub *websocket.Hub) *Server {
	s := &Server{
		manager: manager,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods("DELETE")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.manager.Stats())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.ListSessions()

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created" (default), "activity"
	order := query.Get("order")    // "asc" (default), "desc"
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "created"
	}
	if order == "" {
		order = "asc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "activity" {
			ti, tj = sessions[i].LastActivityAt, sessions[j].LastActivityAt
		} else { // "created"
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		}

		if order == "desc" {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})

	limit := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			limit = l
		}
	}
	sessions = sessions[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	summary, err := s.manager.GetSession(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	ended, err := s.manager.Close(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.hub != nil {
		s.hub.NotifyEnded([]*session.EndedSession{ended}, "closed")
	}

	log.Printf("[CLOSE] session=%s code=%s sensors=%d", ended.SessionID, ended.SessionCode, len(ended.SensorConnIDs))

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s closed", sessionID),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "WebSocket transport not available")
		return
	}
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
