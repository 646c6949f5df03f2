package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/clients/{clientID}/rebalance/process", h.HandleProcess)
	r.Post("/clients/{clientID}/rebalance/preview", h.HandlePreview)
	r.Post("/clients/{clientID}/rebalance/apply", h.HandleRebalance)

	r.Get("/rebalance/staged/{stagedID}", h.HandleGetStaged)
	r.Get("/rebalance/staged/{stagedID}/report", h.HandleGetStagedReport)
	r.Post("/rebalance/staged/{stagedID}/apply", h.HandleApplyStaged)
	r.Delete("/rebalance/staged/{stagedID}", h.HandleDiscardStaged)
}
