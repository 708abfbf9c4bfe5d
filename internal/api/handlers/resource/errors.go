package resource

import (
	"errors"
	"log/slog"
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/core/resources"
)

// handleServiceError converts service errors to appropriate HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resources.ErrUnauthenticated):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
	case errors.Is(err, resources.ErrResourceNotFound):
		handlers.WriteError(w, http.StatusNotFound, "ResourceNotFound", "Resource not found")
	case errors.Is(err, resources.ErrInvalidCursor):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidCursor", "Invalid pagination cursor")
	case errors.Is(err, resources.ErrInvalidFilter):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, resources.ErrInvalidResource):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidResource", err.Error())
	case errors.Is(err, resources.ErrForbidden):
		handlers.WriteError(w, http.StatusForbidden, "Forbidden", "Only the owner can change this resource")
	default:
		slog.Error("resource handler error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "An internal error occurred")
	}
}
