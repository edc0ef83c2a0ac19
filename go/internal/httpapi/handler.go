package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/rs/zerolog/log"
)

// Handler exposes the session operations over HTTP+JSON.
type Handler struct {
	app *table.App
}

// NewHandler creates a new session HTTP handler.
func NewHandler(app *table.App) *Handler {
	return &Handler{app: app}
}

type createSessionRequest struct {
	Name       string    `json:"name"`
	SmallBlind int64     `json:"small_blind"`
	BigBlind   int64     `json:"big_blind"`
	HostID     uuid.UUID `json:"host_id"`
	HostName   string    `json:"host_name"`
}

type createSessionResponse struct {
	Session *models.Session `json:"session"`
	ShortID string          `json:"short_id"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, shortID, err := h.app.CreateSession(r.Context(), table.CreateSessionRequest{
		Name:       req.Name,
		SmallBlind: req.SmallBlind,
		BigBlind:   req.BigBlind,
		HostID:     req.HostID,
		HostName:   req.HostName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Session: session, ShortID: shortID})
}

type joinSessionRequest struct {
	SessionID   string    `json:"session_id"` // full or short id
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

type joinSessionResponse struct {
	Session       *models.Session `json:"session"`
	AlreadyJoined bool            `json:"already_joined"`
}

func (h *Handler) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, already, err := h.app.JoinSession(r.Context(), req.SessionID, req.UserID, req.DisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, joinSessionResponse{Session: session, AlreadyJoined: already})
}

type callerRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type sessionResponse struct {
	Session *models.Session `json:"session"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.StartSession(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

type actionRequest struct {
	UserID uuid.UUID         `json:"user_id"`
	Action models.ActionKind `json:"action"`
	// Amount is the new total current bet; only meaningful for raise.
	Amount int64 `json:"amount,omitempty"`
}

func (h *Handler) handlePerformAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.PerformAction(r.Context(), r.PathValue("id"), req.UserID, req.Action, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.EndSession(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.app.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

type validateShortIDResponse struct {
	Exists bool   `json:"exists"`
	FullID string `json:"full_id,omitempty"`
}

func (h *Handler) handleValidateShortID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.app.ValidateShortID(r.PathValue("shortId"))
	resp := validateShortIDResponse{Exists: ok}
	if ok {
		resp.FullID = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type removeParticipantRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	TargetID uuid.UUID `json:"target_id"`
}

func (h *Handler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	var req removeParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.RemoveParticipant(r.Context(), r.PathValue("id"), req.UserID, req.TargetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (h *Handler) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.app.LeaveSession(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

// RegisterRoutes registers the session API routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("POST /api/sessions/join", h.handleJoinSession)
	mux.HandleFunc("POST /api/sessions/{id}/start", h.handleStartSession)
	mux.HandleFunc("POST /api/sessions/{id}/actions", h.handlePerformAction)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.handleEndSession)
	mux.HandleFunc("POST /api/sessions/{id}/kick", h.handleRemoveParticipant)
	mux.HandleFunc("POST /api/sessions/{id}/leave", h.handleLeaveSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("GET /api/shortids/{shortId}", h.handleValidateShortID)
	log.Info().Msg("session API routes registered")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps the domain error taxonomy to HTTP status codes.
// Engine rejections surface synchronously and are never retried server-side.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, table.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, table.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, table.ErrNotYourTurn),
		errors.Is(err, table.ErrNotActive),
		errors.Is(err, table.ErrInsufficientChips),
		errors.Is(err, table.ErrInvalidRaise):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, table.ErrNetworkUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
