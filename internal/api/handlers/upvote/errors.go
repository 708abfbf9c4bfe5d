package upvote

import (
	"errors"
	"log/slog"
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/core/upvotes"
	"Linkboard/internal/trigger"
)

// handleServiceError converts service errors to appropriate HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upvotes.ErrUnauthenticated):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
	case errors.Is(err, upvotes.ErrResourceNotFound):
		handlers.WriteError(w, http.StatusNotFound, "ResourceNotFound", "Resource not found")
	case errors.Is(err, upvotes.ErrToggleContended):
		handlers.WriteError(w, http.StatusConflict, "ToggleConflict", "Concurrent toggle in progress, retry")
	case errors.Is(err, trigger.ErrInvalidSignature):
		handlers.WriteError(w, http.StatusUnauthorized, "InvalidSignature", "Signature verification failed")
	case errors.Is(err, upvotes.ErrMalformedOperation):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidOperation", err.Error())
	default:
		slog.Error("upvote handler error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "An internal error occurred")
	}
}
