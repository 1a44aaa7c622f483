package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/internal/driver"
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/session"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest defines the request body for starting a session.
type CreateSessionRequest struct {
	Script         string            `json:"script"`                     // Required: script filename
	StartNode      string            `json:"start_node,omitempty"`       // Optional: override the script's start node
	Vars           map[string]string `json:"vars,omitempty"`             // Optional: initial replacement variables
	ResumeOnChoice bool              `json:"resume_on_choice,omitempty"` // Optional: choice re-entry keeps the node cursor
}

// ChooseRequest defines the request body for selecting an option.
type ChooseRequest struct {
	Destination string `json:"destination"`
}

// VarsRequest defines the request body for replacing variables.
type VarsRequest struct {
	Vars map[string]string `json:"vars"`
}

// SessionResponse pairs the session snapshot with the line the operation
// displayed. Line is absent when the operation ended the conversation.
type SessionResponse struct {
	Session *state.SessionState `json:"session"`
	Line    *state.LineView     `json:"line,omitempty"`
	Ended   bool                `json:"ended,omitempty"`
}

// ActionsResponse carries drained actions in dispatch order.
type ActionsResponse struct {
	Actions []*queue.ActionEvent `json:"actions"`
}

type SessionsHandler struct {
	driver *driver.Driver
	logger *slog.Logger
}

func NewSessionsHandler(d *driver.Driver, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		driver: d,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for dialogue sessions.
// Routes:
// POST   /v1/sessions                    - Start a new session
// GET    /v1/sessions/{id}               - Read session and current line
// DELETE /v1/sessions/{id}               - Finish and delete the session
// POST   /v1/sessions/{id}/continue      - Advance one line
// POST   /v1/sessions/{id}/choose        - Jump to a chosen destination
// PUT    /v1/sessions/{id}/vars          - Merge replacement variables
// DELETE /v1/sessions/{id}/vars/{key}    - Remove one variable
// GET    /v1/sessions/{id}/actions       - Drain pending actions
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to create a session.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, sessionID)
		case http.MethodDelete:
			h.handleFinish(w, r, sessionID)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}

	case 2:
		switch parts[1] {
		case "continue":
			if r.Method != http.MethodPost {
				h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to continue.")
				return
			}
			h.handleContinue(w, r, sessionID)
		case "choose":
			if r.Method != http.MethodPost {
				h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to choose.")
				return
			}
			h.handleChoose(w, r, sessionID)
		case "vars":
			if r.Method != http.MethodPut {
				h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use PUT to set vars.")
				return
			}
			h.handleSetVars(w, r, sessionID)
		case "actions":
			if r.Method != http.MethodGet {
				h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use GET to drain actions.")
				return
			}
			h.handleDrainActions(w, r, sessionID)
		default:
			h.writeError(w, http.StatusNotFound, "Unknown session resource: "+parts[1])
		}

	case 3:
		if parts[1] == "vars" && r.Method == http.MethodDelete {
			h.handleDeleteVar(w, r, sessionID, parts[2])
			return
		}
		h.writeError(w, http.StatusNotFound, "Unknown session resource")

	default:
		h.writeError(w, http.StatusNotFound, "Unknown session resource")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	req.Script = strings.TrimSpace(req.Script)
	if req.Script == "" {
		h.logger.Warn("Missing required field: script")
		h.writeError(w, http.StatusBadRequest, "script field is required")
		return
	}
	if strings.Contains(req.Script, "..") || strings.Contains(req.Script, "/") {
		h.writeError(w, http.StatusBadRequest, "Invalid script filename")
		return
	}

	st, line, err := h.driver.CreateSession(r.Context(), req.Script, req.StartNode, req.Vars, req.ResumeOnChoice)
	if err != nil {
		h.writeOpError(w, err, "Failed to create session")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(SessionResponse{Session: st, Line: line}); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	st, line, err := h.driver.Get(r.Context(), sessionID)
	if err != nil {
		h.writeOpError(w, err, "Failed to load session")
		return
	}

	w.WriteHeader(http.StatusOK)
	resp := SessionResponse{Session: st, Line: line, Ended: st.Status == state.StatusEnded}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleContinue(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	st, line, err := h.driver.Continue(r.Context(), sessionID)
	if err != nil {
		h.writeOpError(w, err, "Failed to continue session")
		return
	}

	w.WriteHeader(http.StatusOK)
	resp := SessionResponse{Session: st, Line: line, Ended: st.Status == state.StatusEnded}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleChoose(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req ChooseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in choose request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Destination == "" {
		h.writeError(w, http.StatusBadRequest, "destination field is required")
		return
	}

	st, line, err := h.driver.Choose(r.Context(), sessionID, req.Destination)
	if err != nil {
		h.writeOpError(w, err, "Failed to choose destination")
		return
	}

	w.WriteHeader(http.StatusOK)
	resp := SessionResponse{Session: st, Line: line, Ended: st.Status == state.StatusEnded}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleSetVars(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req VarsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in vars request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	st, err := h.driver.SetVars(r.Context(), sessionID, req.Vars)
	if err != nil {
		h.writeOpError(w, err, "Failed to set vars")
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleDeleteVar(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, key string) {
	st, err := h.driver.DeleteVar(r.Context(), sessionID, key)
	if err != nil {
		h.writeOpError(w, err, "Failed to delete var")
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionsHandler) handleDrainActions(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	actions, err := h.driver.DrainActions(r.Context(), sessionID)
	if err != nil {
		h.writeOpError(w, err, "Failed to drain actions")
		return
	}
	if actions == nil {
		actions = []*queue.ActionEvent{}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ActionsResponse{Actions: actions}); err != nil {
		h.logger.Error("Failed to encode actions response", "error", err)
	}
}

func (h *SessionsHandler) handleFinish(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.driver.Finish(r.Context(), sessionID); err != nil {
		h.writeOpError(w, err, "Failed to finish session")
		return
	}
	h.logger.Debug("Session finished", "id", sessionID.String())
	w.WriteHeader(http.StatusNoContent)
}

// writeOpError maps driver errors onto HTTP statuses: missing things are
// 404, operations illegal in the session's current state are 409, and
// requests the script cannot satisfy are 422.
func (h *SessionsHandler) writeOpError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, driver.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Script not found")
	case errors.Is(err, session.ErrEnded):
		h.writeError(w, http.StatusConflict, "Conversation is over")
	case errors.Is(err, session.ErrClosed):
		h.writeError(w, http.StatusConflict, "Session is closed")
	case errors.Is(err, session.ErrUnknownNode):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, conversation.ErrNoLines):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		h.writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
