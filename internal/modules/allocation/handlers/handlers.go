// Package handlers provides HTTP handlers for ownership slice maintenance.
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/utils"
)

// Handler handles slice HTTP requests
type Handler struct {
	maintenance *allocation.Maintenance
	projector   *allocation.Projector
	totals      allocation.ClassTotaler
	log         zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(
	maintenance *allocation.Maintenance,
	projector *allocation.Projector,
	totals allocation.ClassTotaler,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		maintenance: maintenance,
		projector:   projector,
		totals:      totals,
		log:         log.With().Str("handler", "allocation").Logger(),
	}
}

// SetSlicesRequest is the body of PUT /clients/{clientID}/slices.
// Keys are goal ids.
type SetSlicesRequest struct {
	Slices map[string]domain.ClassVector `json:"slices"`
}

// HandleGetAllocations handles GET /api/clients/{clientID}/allocations
func (h *Handler) HandleGetAllocations(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	totals, err := h.totals.ClassTotals(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	allocs, err := h.projector.CurrentAllocations(clientID, totals)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	goals := make([]allocation.GoalAllocation, 0, len(allocs))
	for _, a := range allocs {
		goals = append(goals, a)
	}
	sortAllocations(goals)

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"client_id":    clientID,
		"class_totals": totals,
		"goals":        goals,
	})
}

// HandleValidate handles GET /api/clients/{clientID}/slices/validation
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	v, err := h.maintenance.ValidateSlices(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, v)
}

// HandleRepair handles POST /api/clients/{clientID}/slices/repair
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	repaired, err := h.maintenance.RepairSlicesFromPool(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{"slices": repaired})
}

// HandleSetSlices handles PUT /api/clients/{clientID}/slices
func (h *Handler) HandleSetSlices(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req SetSlicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Slices) == 0 {
		http.Error(w, "slices are required", http.StatusBadRequest)
		return
	}

	percents := make(map[int64]domain.ClassVector, len(req.Slices))
	for key, pct := range req.Slices {
		goalID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			http.Error(w, "slice keys must be goal ids", http.StatusBadRequest)
			return
		}
		percents[goalID] = pct
	}

	merged, err := h.maintenance.SetSlicesManually(clientID, percents)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{"slices": merged})
}

// HandleResetSlices handles DELETE /api/clients/{clientID}/slices
func (h *Handler) HandleResetSlices(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	removed, err := h.maintenance.ResetSlices(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// HandleUnassigned handles GET /api/clients/{clientID}/unassigned
func (h *Handler) HandleUnassigned(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	report, err := h.maintenance.UnassignedCapital(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, report)
}

func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	utils.WriteJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, h.log)
}

func sortAllocations(a []allocation.GoalAllocation) {
	sort.Slice(a, func(i, j int) bool { return a[i].GoalID < a[j].GoalID })
}
