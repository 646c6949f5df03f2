// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/rebalancing"
	"github.com/aristath/geld/internal/utils"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service *rebalancing.Service
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(
	service *rebalancing.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// RebalanceRequest is the body of every rebalance endpoint
type RebalanceRequest struct {
	Movements []domain.Movement `json:"movements"`
	Cascade   bool              `json:"cascade"`
}

// HandleProcess handles POST /api/clients/{clientID}/rebalance/process
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	clientID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.service.Process(clientID, req.Movements, req.Cascade)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, resultPayload(result))
}

// HandlePreview handles POST /api/clients/{clientID}/rebalance/preview
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	clientID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	staged, err := h.service.Preview(clientID, req.Movements, req.Cascade)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusCreated, stagedPayload(staged))
}

// HandleRebalance handles POST /api/clients/{clientID}/rebalance/apply
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	clientID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.service.Rebalance(clientID, req.Movements, req.Cascade)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, resultPayload(result))
}

// HandleGetStaged handles GET /api/rebalance/staged/{stagedID}
func (h *Handler) HandleGetStaged(w http.ResponseWriter, r *http.Request) {
	staged, err := h.service.GetStaged(chi.URLParam(r, "stagedID"))
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, stagedPayload(staged))
}

// HandleGetStagedReport handles GET /api/rebalance/staged/{stagedID}/report
func (h *Handler) HandleGetStagedReport(w http.ResponseWriter, r *http.Request) {
	staged, err := h.service.GetStaged(chi.URLParam(r, "stagedID"))
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(rebalancing.Report(staged.Result))); err != nil {
		h.log.Error().Err(err).Msg("Failed to write report")
	}
}

// HandleApplyStaged handles POST /api/rebalance/staged/{stagedID}/apply
func (h *Handler) HandleApplyStaged(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ApplyStaged(chi.URLParam(r, "stagedID"))
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, resultPayload(result))
}

// HandleDiscardStaged handles DELETE /api/rebalance/staged/{stagedID}
func (h *Handler) HandleDiscardStaged(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stagedID")
	if err := h.service.DiscardStaged(id); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{"staged_id": id, "discarded": true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (int64, RebalanceRequest, bool) {
	var req RebalanceRequest

	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil || clientID <= 0 {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return 0, req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return 0, req, false
	}

	return clientID, req, true
}

func resultPayload(result *rebalancing.Result) map[string]interface{} {
	lines := make([]string, 0, len(result.NetInstructions))
	for _, inst := range result.NetInstructions {
		lines = append(lines, rebalancing.InstructionLine(inst))
	}
	return map[string]interface{}{
		"result":  result,
		"summary": lines,
	}
}

func stagedPayload(staged *rebalancing.StagedResult) map[string]interface{} {
	payload := resultPayload(staged.Result)
	payload["staged_id"] = staged.ID
	payload["created_at"] = staged.CreatedAt
	payload["expires_at"] = staged.ExpiresAt
	return payload
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	utils.WriteJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, h.log)
}
