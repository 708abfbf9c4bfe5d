package resource

import (
	"encoding/json"
	"errors"
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/resources"

	"github.com/go-chi/chi/v5"
)

// maxResourceBody bounds create and update payloads
const maxResourceBody = 64 * 1024

// HandleCreate stores a new unpublished resource owned by the caller
// POST /resources
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	var draft resources.Draft
	if !decodeBody(w, r, &draft) {
		return
	}

	created, err := h.service.Create(r.Context(), userID, draft)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSONStatus(w, http.StatusCreated, created)
}

// HandleUpdate applies a partial update to one of the caller's resources
// PATCH /resources/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	var patch resources.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, updated)
}

// HandlePublish makes one of the caller's drafts visible in listings
// PATCH /resources/{id}/publish
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	published, err := h.service.Publish(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, published)
}

// HandleListMine returns the caller's own resources, drafts included
// GET /resource/user
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return
	}

	list, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, map[string]interface{}{"resources": list})
}

// HandleCategories lists every category
// GET /categories
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, map[string]interface{}{"categories": list})
}

// HandleTags lists the tag vocabulary
// GET /tags
func (h *Handler) HandleTags(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTags(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, map[string]interface{}{"tags": list})
}

// decodeBody reads a size-limited JSON body into dest, writing the error response on failure
func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxResourceBody)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.WriteError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
				"Request body too large (max 64KB)")
			return false
		}
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return false
	}
	return true
}
