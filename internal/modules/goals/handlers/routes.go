package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers goal routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/clients/{clientID}/goals", h.HandleList)
	r.Post("/clients/{clientID}/goals", h.HandleCreate)
	r.Get("/clients/{clientID}/contribution-plan", h.HandleContributionPlan)

	r.Get("/goals/{goalID}", h.HandleGet)
	r.Put("/goals/{goalID}", h.HandleUpdate)
	r.Delete("/goals/{goalID}", h.HandleDelete)
}
