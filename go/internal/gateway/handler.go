package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/rs/zerolog/log"
)

// StateProvider defines what the gateway needs to serve pull-based state
// requests (the request_refresh fallback path).
type StateProvider interface {
	GetSession(ctx context.Context, idOrShort string) (*models.Session, error)
}

// Resyncer serves explicit force-resync requests.
type Resyncer interface {
	ForceResync(ctx context.Context, sessionID uuid.UUID) error
}

// Handler exposes the gateway's HTTP surface: WebSocket subscriptions,
// authoritative state pulls, force resync and connection stats.
type Handler struct {
	connectionManager *ConnectionManager
	state             StateProvider
	resyncer          Resyncer
}

// NewHandler creates a new gateway HTTP handler.
func NewHandler(cm *ConnectionManager, state StateProvider, resyncer Resyncer) *Handler {
	return &Handler{
		connectionManager: cm,
		state:             state,
		resyncer:          resyncer,
	}
}

// HandleSessionConnection upgrades a request to a WebSocket subscription
// for one session.
func (h *Handler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := r.URL.Query().Get("session_id")
	if sessionIDStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	// In production the user id comes from the auth layer; the gateway
	// treats identity issuance as an external collaborator.
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, sessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleSessionState serves the authoritative session snapshot. This is the
// pull path subscribers use when a request_refresh arrives or their own
// periodic backstop fires.
func (h *Handler) HandleSessionState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := h.state.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, table.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		log.Error().Err(err).Msg("failed to encode session state")
	}
}

// HandleForceResync serves an explicit resync request: the requesting
// user's connections are dropped so the client re-subscribes, then the
// authoritative state is fetched and re-broadcast.
func (h *Handler) HandleForceResync(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	if userID := r.URL.Query().Get("user_id"); userID != "" {
		h.connectionManager.DropUser(sessionID, userID)
	}

	if err := h.resyncer.ForceResync(r.Context(), sessionID); err != nil {
		if errors.Is(err, table.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to resync", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleConnectionStats returns statistics about active connections.
func (h *Handler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, sessions := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total_connections": total,
		"active_sessions":   sessions,
	})
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/session", h.HandleSessionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
	mux.HandleFunc("GET /api/sessions/{id}/state", h.HandleSessionState)
	mux.HandleFunc("POST /api/sessions/{id}/resync", h.HandleForceResync)
}
