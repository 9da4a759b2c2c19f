package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, operatorKeyHash string, wsHandler http.HandlerFunc) {
	r.Get("/health", h.Health)
	if wsHandler != nil {
		r.Get("/ws", wsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
		})

		// Sessions and turns
		r.Post("/sessions/{id}/turns", h.ProcessTurn)
		r.Get("/sessions/{id}", h.GetSession)
		r.Get("/sessions/{id}/turns", h.ListTurns)
		r.Get("/sessions/{id}/events", h.ListEvents)

		// Thresholds
		r.Get("/thresholds", h.GetThresholds)
		r.With(middleware.OperatorAuth(operatorKeyHash)).
			Put("/thresholds", h.UpdateThresholds)
	})
}
