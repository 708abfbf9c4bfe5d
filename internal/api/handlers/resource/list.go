package resource

import (
	"net/http"
	"strconv"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/resources"

	"github.com/go-chi/chi/v5"
)

// Handler serves the resource catalogue and bookmarks
type Handler struct {
	service resources.Service
}

// NewHandler creates a new resource handler
func NewHandler(service resources.Service) *Handler {
	return &Handler{service: service}
}

// HandleList returns one page of published resources
// GET /resources?type=&category=&tag=&cursor=&limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := resources.Filter{
		Type:     q.Get("type"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Cursor:   q.Get("cursor"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > resources.MaxLimit {
			handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 50")
			return
		}
		filter.Limit = limit
	}

	page, err := h.service.List(r.Context(), filter, middleware.GetUserID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, page)
}

// HandleGet returns one resource
// GET /resources/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), middleware.GetUserID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, res)
}
