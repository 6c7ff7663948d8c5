package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/services"
)

// AnnotationsHandler handles annotation-level HTTP requests.
type AnnotationsHandler struct {
	annotationService services.AnnotationService
	logger            *zap.Logger
}

// NewAnnotationsHandler creates a new annotations handler.
func NewAnnotationsHandler(annotationService services.AnnotationService, logger *zap.Logger) *AnnotationsHandler {
	return &AnnotationsHandler{annotationService: annotationService, logger: logger}
}

// RegisterRoutes registers the annotations handler's routes on the given mux.
func (h *AnnotationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PATCH /annotations/{id}", h.Patch)
	mux.HandleFunc("DELETE /annotations/{id}", h.Delete)
}

// Patch handles PATCH /annotations/{id}: merges the update fields into the
// stored annotation and returns the merged entity.
func (h *AnnotationsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON object")
		return
	}

	annotation, err := h.annotationService.Patch(r.Context(), r.PathValue("id"), updates)
	if err != nil {
		h.handleServiceError(w, err, "Failed to patch annotation")
		return
	}

	if err := WriteJSON(w, http.StatusOK, annotation); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Delete handles DELETE /annotations/{id}.
func (h *AnnotationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.annotationService.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, err, "Failed to delete annotation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationsHandler) handleServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (h *AnnotationsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
