package upvote

import (
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/upvotes"

	"github.com/go-chi/chi/v5"
)

// ToggleResponse is the body of a successful toggle
type ToggleResponse struct {
	Success    bool   `json:"success"`
	ResourceID string `json:"resourceId"`
	Count      int64  `json:"count"`
	Action     string `json:"action"`
}

// ToggleHandler flips the caller's upvote on a resource
type ToggleHandler struct {
	service upvotes.Service
}

// NewToggleHandler creates a new toggle handler
func NewToggleHandler(service upvotes.Service) *ToggleHandler {
	return &ToggleHandler{service: service}
}

// HandleToggle adds or removes the caller's upvote
// PATCH /resource/upvote/{id}
func (h *ToggleHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "id")
	if resourceID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "resource id is required")
		return
	}

	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	result, err := h.service.Toggle(r.Context(), userID, resourceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, ToggleResponse{
		Success:    true,
		ResourceID: result.ResourceID,
		Count:      result.Count,
		Action:     result.Action,
	})
}
