package routes

import (
	"Linkboard/internal/api/handlers/resource"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/resources"

	"github.com/go-chi/chi/v5"
)

// RegisterResourceRoutes registers the catalogue, authoring and bookmark endpoints
func RegisterResourceRoutes(r chi.Router, service resources.Service, auth *middleware.AuthMiddleware) {
	handler := resource.NewHandler(service)

	// Listings personalise upvote and bookmark state when a token is present
	r.With(auth.OptionalAuth).Get("/resources", handler.HandleList)
	r.With(auth.OptionalAuth).Get("/resources/{id}", handler.HandleGet)

	r.With(auth.RequireAuth).Patch("/resource/bookmark/{id}", handler.HandleToggleBookmark)
	r.With(auth.RequireAuth).Get("/resource/bookmarks", handler.HandleListBookmarks)

	r.With(auth.RequireAuth).Post("/resources", handler.HandleCreate)
	r.With(auth.RequireAuth).Patch("/resources/{id}", handler.HandleUpdate)
	r.With(auth.RequireAuth).Patch("/resources/{id}/publish", handler.HandlePublish)
	r.With(auth.RequireAuth).Get("/resource/user", handler.HandleListMine)

	r.Get("/categories", handler.HandleCategories)
	r.Get("/tags", handler.HandleTags)
}
