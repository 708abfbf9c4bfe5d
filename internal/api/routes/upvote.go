package routes

import (
	"net/http"

	"Linkboard/internal/api/handlers/upvote"
	"Linkboard/internal/api/middleware"
	"Linkboard/internal/core/upvotes"

	"github.com/go-chi/chi/v5"
)

// UpvoteRouteDeps groups what the upvote endpoints need
type UpvoteRouteDeps struct {
	Service     upvotes.Service
	Processor   upvote.BatchRunner
	Reconciler  upvote.ReconcileRunner
	Broadcaster upvotes.Broadcaster

	Auth *middleware.AuthMiddleware
	// Signature guards the internal endpoints called by the trigger service
	Signature func(http.Handler) http.Handler
	// RateLimit throttles the public toggle endpoint; nil disables it
	RateLimit *middleware.RateLimiter

	AllowedOrigins []string
}

// RegisterUpvoteRoutes registers the upvote endpoints on the router
func RegisterUpvoteRoutes(r chi.Router, deps UpvoteRouteDeps) {
	toggleHandler := upvote.NewToggleHandler(deps.Service)
	getHandler := upvote.NewGetHandler(deps.Service)
	jobHandler := upvote.NewJobHandler(deps.Service, deps.Processor, deps.Reconciler, nil)
	streamHandler := upvote.NewStreamHandler(deps.Broadcaster, deps.AllowedOrigins, nil)

	// Public toggle - requires authentication
	toggle := r.With(deps.Auth.RequireAuth)
	if deps.RateLimit != nil {
		toggle = toggle.With(deps.RateLimit.Middleware)
	}
	toggle.Patch("/resource/upvote/{id}", toggleHandler.HandleToggle)

	// chi matches the static stream path ahead of {id}
	r.Get("/resource/upvote/stream", streamHandler.HandleStream)
	r.With(deps.Auth.OptionalAuth).Get("/resource/upvote/{id}", getHandler.HandleGet)

	// Internal endpoints - signed by the trigger service
	r.Group(func(r chi.Router) {
		r.Use(deps.Signature)
		r.Post("/resource/upvote/queue", jobHandler.HandleQueue)
		r.Post(upvotes.BatchJobPath, jobHandler.HandleBatch)
		r.Post("/resource/upvote/job/reconcile", jobHandler.HandleReconcile)
	})
}
