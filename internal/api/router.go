package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(h *Handler, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/*", h.GetDocument)

	// Search.
	r.Get("/search", h.Search)

	// Ranked index.
	r.Post("/index", h.BuildIndex)

	// SSE endpoint (protected by same auth middleware).
	if h.opts.Events != nil {
		r.Get("/events", h.opts.Events.ServeHTTP)
	}

	return r
}
