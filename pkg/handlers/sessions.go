package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/services"
)

// ActionRequest is the payload for POST /sessions/{id}/action.
type ActionRequest struct {
	Annotations []models.Annotation `json:"annotations"`
	Output      string              `json:"output"`
}

// ActionResponse is the result of an action broadcast.
type ActionResponse struct {
	Success  bool   `json:"success"`
	ActionID string `json:"actionId"`
}

// SessionsHandler handles session-related HTTP requests.
type SessionsHandler struct {
	sessionService    services.SessionService
	annotationService services.AnnotationService
	broker            *services.ActionBroker
	logger            *zap.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessionService services.SessionService, annotationService services.AnnotationService, broker *services.ActionBroker, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessionService:    sessionService,
		annotationService: annotationService,
		broker:            broker,
		logger:            logger,
	}
}

// RegisterRoutes registers the sessions handler's routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sessions", h.List)
	mux.HandleFunc("POST /sessions", h.Create)
	mux.HandleFunc("GET /sessions/{id}", h.Get)
	mux.HandleFunc("PATCH /sessions/{id}", h.UpdateStatus)
	mux.HandleFunc("POST /sessions/{id}/annotations", h.CreateAnnotation)
	mux.HandleFunc("GET /sessions/{id}/pending", h.ListPending)
	mux.HandleFunc("GET /pending", h.ListAllPending)
	mux.HandleFunc("POST /sessions/{id}/action", h.Action)
}

// List handles GET /sessions?status&limit.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *models.SessionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.SessionStatus(raw)
		status = &s
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	sessions, err := h.sessionService.List(r.Context(), status, limit)
	if err != nil {
		h.handleServiceError(w, err, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	h.writeJSON(w, http.StatusOK, sessions)
}

// Create handles POST /sessions. An existing active session for the url is
// returned with 200; a newly created one with 201.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	session, created, err := h.sessionService.GetOrCreate(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err, "Failed to create session")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, session)
}

// Get handles GET /sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to get session")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// UpdateStatus handles PATCH /sessions/{id}: the session status transition
// (active, approved, closed).
func (h *SessionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req struct {
		Status models.SessionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	if err := h.sessionService.UpdateStatus(r.Context(), sessionID, req.Status); err != nil {
		h.handleServiceError(w, err, "Failed to update session status")
		return
	}

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get session")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// CreateAnnotation handles POST /sessions/{id}/annotations.
func (h *SessionsHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// The session must exist; annotations never create their parent.
	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to get session")
		return
	}
	if session.Status == models.SessionClosed {
		h.handleServiceError(w, apperrors.ErrSessionClosed, "Annotation rejected for closed session")
		return
	}

	var annotation models.Annotation
	if err := json.NewDecoder(r.Body).Decode(&annotation); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	if err := h.annotationService.Create(r.Context(), sessionID, &annotation); err != nil {
		h.handleServiceError(w, err, "Failed to create annotation")
		return
	}
	h.writeJSON(w, http.StatusCreated, annotation)
}

// ListPending handles GET /sessions/{id}/pending.
func (h *SessionsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.sessionService.Get(r.Context(), sessionID); err != nil {
		h.handleServiceError(w, err, "Failed to get session")
		return
	}

	annotations, err := h.annotationService.ListPending(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, err, "Failed to list pending annotations")
		return
	}
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	h.writeJSON(w, http.StatusOK, annotations)
}

// ListAllPending handles GET /pending.
func (h *SessionsHandler) ListAllPending(w http.ResponseWriter, r *http.Request) {
	annotations, err := h.annotationService.ListAllPending(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "Failed to list pending annotations")
		return
	}
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	h.writeJSON(w, http.StatusOK, annotations)
}

// Action handles POST /sessions/{id}/action: broadcast to any in-process
// listener registered for the session.
func (h *SessionsHandler) Action(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.sessionService.Get(r.Context(), sessionID); err != nil {
		h.handleServiceError(w, err, "Failed to get session")
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	actionID, err := h.broker.Broadcast(sessionID, req.Annotations, req.Output)
	if err != nil {
		h.handleServiceError(w, err, "Failed to broadcast action")
		return
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{Success: true, ActionID: actionID})
}

// handleServiceError maps service errors onto HTTP statuses.
func (h *SessionsHandler) handleServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperrors.ErrSessionClosed):
		h.writeError(w, http.StatusConflict, "session_closed", "Session is closed and accepts no new annotations")
	case errors.Is(err, apperrors.ErrConflict):
		h.writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *SessionsHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
