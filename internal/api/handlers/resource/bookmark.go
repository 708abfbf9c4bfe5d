package resource

import (
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/api/middleware"

	"github.com/go-chi/chi/v5"
)

// HandleToggleBookmark flips the caller's bookmark on a resource
// PATCH /resource/bookmark/{id}
func (h *Handler) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	result, err := h.service.ToggleBookmark(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{
		"success":    true,
		"resourceId": result.ResourceID,
		"bookmarked": result.Bookmarked,
	})
}

// HandleListBookmarks returns the caller's bookmarked resources
// GET /resource/bookmarks
func (h *Handler) HandleListBookmarks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	list, err := h.service.ListBookmarks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{"resources": list})
}
