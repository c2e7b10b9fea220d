package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the cleaning endpoints. It expects to be mounted
// under /api/v1.
func RegisterRoutes(r chi.Router, handler *Handler) {
	// POST /api/v1/clean - Cleaned reply text
	r.Post("/clean", handler.Clean)

	// POST /api/v1/thread - Reply and quoted history segments
	r.Post("/thread", handler.Thread)

	// POST /api/v1/significance - Whether cleaning removed enough to offer the original
	r.Post("/significance", handler.Significance)

	// POST /api/v1/preview - Cleaned text with fallbacks and sanitized HTML
	r.Post("/preview", handler.Preview)

	r.Route("/messages", func(r chi.Router) {
		// POST /api/v1/messages/parse - Parse a raw message and build its preview
		r.Post("/parse", handler.ParseMessage)
	})
}
