// Package handlers provides HTTP handlers for goal management.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/utils"
)

const dateLayout = "2006-01-02"

// Handler handles goal HTTP requests
type Handler struct {
	service *goals.Service
	log     zerolog.Logger
}

// NewHandler creates a new goals handler
func NewHandler(service *goals.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "goals").Logger(),
	}
}

// GoalRequest is the body of create and update requests. Dates use YYYY-MM-DD.
type GoalRequest struct {
	Name        string  `json:"name"`
	GoalType    string  `json:"goal_type"`
	StartDate   string  `json:"start_date"`
	TargetDate  string  `json:"target_date"`
	TargetValue float64 `json:"target_value"`
}

func (req GoalRequest) toGoal() (domain.Goal, error) {
	g := domain.Goal{
		Name:        strings.TrimSpace(req.Name),
		Type:        domain.GoalType(strings.ToLower(strings.TrimSpace(req.GoalType))),
		TargetValue: req.TargetValue,
	}

	var err error
	if req.StartDate != "" {
		if g.StartDate, err = time.Parse(dateLayout, req.StartDate); err != nil {
			return g, &domain.ValidationError{Field: "start_date", Message: "expected YYYY-MM-DD"}
		}
	}
	if req.TargetDate != "" {
		if g.TargetDate, err = time.Parse(dateLayout, req.TargetDate); err != nil {
			return g, &domain.ValidationError{Field: "target_date", Message: "expected YYYY-MM-DD"}
		}
	}
	return g, nil
}

// HandleList handles GET /api/clients/{clientID}/goals
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.idParam(w, r, "clientID")
	if !ok {
		return
	}

	list, err := h.service.List(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"goals": list,
		"count": len(list),
	})
}

// HandleCreate handles POST /api/clients/{clientID}/goals
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.idParam(w, r, "clientID")
	if !ok {
		return
	}
	g, ok := h.decode(w, r)
	if !ok {
		return
	}
	g.ClientID = clientID

	created, err := h.service.Create(g)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	h.writeData(w, http.StatusCreated, created)
}

// HandleGet handles GET /api/goals/{goalID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	goalID, ok := h.idParam(w, r, "goalID")
	if !ok {
		return
	}

	g, err := h.service.Get(goalID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	h.writeData(w, http.StatusOK, g)
}

// HandleUpdate handles PUT /api/goals/{goalID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	goalID, ok := h.idParam(w, r, "goalID")
	if !ok {
		return
	}
	g, ok := h.decode(w, r)
	if !ok {
		return
	}
	g.ID = goalID

	updated, err := h.service.Update(g)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	h.writeData(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /api/goals/{goalID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	goalID, ok := h.idParam(w, r, "goalID")
	if !ok {
		return
	}

	if err := h.service.Delete(goalID); err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{"goal_id": goalID, "deleted": true})
}

// HandleContributionPlan handles GET /api/clients/{clientID}/contribution-plan
func (h *Handler) HandleContributionPlan(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.idParam(w, r, "clientID")
	if !ok {
		return
	}

	plan, err := h.service.ContributionPlan(clientID)
	if err != nil {
		utils.WriteError(w, err, h.log)
		return
	}
	h.writeData(w, http.StatusOK, plan)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (domain.Goal, bool) {
	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return domain.Goal{}, false
	}

	g, err := req.toGoal()
	if err != nil {
		utils.WriteError(w, err, h.log)
		return g, false
	}
	return g, true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
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
