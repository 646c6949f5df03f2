// Package handlers provides HTTP handlers for portfolio positions.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/portfolio"
	"github.com/aristath/geld/internal/utils"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	positions domain.PositionStore
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(positions domain.PositionStore, log zerolog.Logger) *Handler {
	return &Handler{
		positions: positions,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/clients/{clientID}/positions", h.HandleGetPositions)
	r.Get("/clients/{clientID}/positions/totals", h.HandleGetTotals)
}

// HandleGetPositions handles GET /api/clients/{clientID}/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	positions, err := h.positions.ListPositions(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	type positionView struct {
		domain.Position
		RiskClass domain.RiskClass `json:"risk_class"`
		Value     string           `json:"value"`
	}
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, positionView{
			Position:  p,
			RiskClass: p.Instrument.RiskClass(),
			Value:     p.Value().StringFixed(2),
		})
	}

	h.writeData(w, map[string]interface{}{
		"positions": views,
		"count":     len(views),
	})
}

// HandleGetTotals handles GET /api/clients/{clientID}/positions/totals
func (h *Handler) HandleGetTotals(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	positions, err := h.positions.ListPositions(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	totals := portfolio.Totals(positions)
	h.writeData(w, map[string]interface{}{
		"class_totals": totals,
		"total":        totals.Total(),
		"positions":    len(positions),
	})
}

func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, h.log)
}
