package upvote

import (
	"log/slog"
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/upvotes"

	"github.com/go-chi/chi/v5"
)

// StatusResponse is the current upvote state of a resource for the viewer
type StatusResponse struct {
	ResourceID string `json:"resourceId"`
	Count      int64  `json:"count"`
	Upvoted    bool   `json:"upvoted"`
}

// GetHandler reads a resource's upvote count
type GetHandler struct {
	service upvotes.Service
}

// NewGetHandler creates a new upvote status handler
func NewGetHandler(service upvotes.Service) *GetHandler {
	return &GetHandler{service: service}
}

// HandleGet returns the live count and, for signed-in viewers, their vote flag
// GET /resource/upvote/{id}
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "id")
	if resourceID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "resource id is required")
		return
	}

	count, err := h.service.Count(r.Context(), resourceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := StatusResponse{ResourceID: resourceID, Count: count}
	if userID := middleware.GetUserID(r); userID != "" {
		voted, err := h.service.HasVoted(r.Context(), userID, resourceID)
		if err != nil {
			// Viewer state is optional enrichment
			slog.Warn("failed to read vote flag", "resource", resourceID, "user", userID, "error", err)
		}
		resp.Upvoted = voted
	}

	handlers.WriteJSON(w, resp)
}
