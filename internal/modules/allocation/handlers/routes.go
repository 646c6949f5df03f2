package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers slice maintenance routes. Paths are flat because
// other modules share the /clients/{clientID} prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/clients/{clientID}/allocations", h.HandleGetAllocations)
	r.Get("/clients/{clientID}/unassigned", h.HandleUnassigned)

	r.Put("/clients/{clientID}/slices", h.HandleSetSlices)
	r.Delete("/clients/{clientID}/slices", h.HandleResetSlices)
	r.Get("/clients/{clientID}/slices/validation", h.HandleValidate)
	r.Post("/clients/{clientID}/slices/repair", h.HandleRepair)
}
