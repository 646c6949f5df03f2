package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/indicators"
	"github.com/aristath/geld/internal/modules/portfolio"
	testingpkg "github.com/aristath/geld/internal/testing"
)

func setup(t *testing.T) (chi.Router, int64) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "advisory")
	t.Cleanup(cleanup)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := goals.NewRepository(db.Conn(), log)
	sliceRepo := allocation.NewRepository(db.Conn(), log)
	agg := portfolio.NewAggregator(portfolio.NewPositionRepository(db.Conn(), log))
	clientLocks := locks.NewClientLocks()
	maintenance := allocation.NewMaintenance(db.Conn(), repo, sliceRepo, agg, clientLocks, allocation.DefaultMaintenanceConfig(), log)
	service := goals.NewService(db.Conn(), repo, sliceRepo, maintenance, agg,
		indicators.NewRepository(db.Conn(), indicators.DefaultFallbackInflation, log), clientLocks, nil, 3.5, log)

	router := chi.NewRouter()
	NewHandler(service, log).RegisterRoutes(router)
	return router, testingpkg.SeedClient(t, db, "Edu")
}

func do(t *testing.T, router chi.Router, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, buf))

	var resp map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	}
	return w, resp
}

func TestGoalLifecycle(t *testing.T) {
	router, clientID := setup(t)
	base := "/clients/" + strconv.FormatInt(clientID, 10)
	target := time.Now().AddDate(4, 0, 0).Format(dateLayout)

	w, resp := do(t, router, http.MethodPost, base+"/goals", GoalRequest{
		Name:        "Sabbatical",
		GoalType:    "General",
		TargetDate:  target,
		TargetValue: 120000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	goal := resp["data"].(map[string]interface{})
	goalPath := "/goals/" + strconv.FormatInt(int64(goal["id"].(float64)), 10)
	assert.Equal(t, "general", goal["goal_type"])

	w, resp = do(t, router, http.MethodGet, base+"/goals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, resp["data"].(map[string]interface{})["count"])

	w, resp = do(t, router, http.MethodPut, goalPath, GoalRequest{
		Name:        "Long sabbatical",
		GoalType:    "general",
		TargetDate:  target,
		TargetValue: 180000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 180000.0, resp["data"].(map[string]interface{})["target_value"])

	w, resp = do(t, router, http.MethodGet, base+"/contribution-plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	plan := resp["data"].(map[string]interface{})
	assert.Greater(t, plan["total_monthly"].(float64), 0.0)

	w, _ = do(t, router, http.MethodDelete, goalPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodGet, goalPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGoalHandlers_Errors(t *testing.T) {
	router, clientID := setup(t)
	base := "/clients/" + strconv.FormatInt(clientID, 10)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"bad date", http.MethodPost, base + "/goals", GoalRequest{Name: "x", GoalType: "general", TargetDate: "01/02/2030", TargetValue: 1}, http.StatusBadRequest},
		{"unknown type", http.MethodPost, base + "/goals", GoalRequest{Name: "x", GoalType: "vacation", TargetDate: "2030-01-01", TargetValue: 1}, http.StatusBadRequest},
		{"zero target", http.MethodPost, base + "/goals", GoalRequest{Name: "x", GoalType: "general", TargetDate: "2030-01-01"}, http.StatusBadRequest},
		{"unknown client", http.MethodGet, "/clients/9999/goals", nil, http.StatusNotFound},
		{"bad goal id", http.MethodGet, "/goals/zero", nil, http.StatusBadRequest},
		{"missing goal", http.MethodDelete, "/goals/9999", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
