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

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/portfolio"
	testingpkg "github.com/aristath/geld/internal/testing"
)

type env struct {
	db       *database.DB
	router   chi.Router
	clientID int64
	goalA    int64
	goalB    int64
}

func setup(t *testing.T) *env {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "advisory")
	t.Cleanup(cleanup)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	goalRepo := goals.NewRepository(db.Conn(), log)
	sliceRepo := allocation.NewRepository(db.Conn(), log)
	agg := portfolio.NewAggregator(portfolio.NewPositionRepository(db.Conn(), log))
	maintenance := allocation.NewMaintenance(db.Conn(), goalRepo, sliceRepo, agg, locks.NewClientLocks(), allocation.DefaultMaintenanceConfig(), log)

	handler := NewHandler(maintenance, allocation.NewProjector(goalRepo, sliceRepo), agg, log)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	clientID := testingpkg.SeedClient(t, db, "Bea")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	goalA := testingpkg.SeedGoal(t, db, clientID, "Car", domain.GoalTypeGeneral, 50000, start, start.AddDate(2, 0, 0))
	goalB := testingpkg.SeedGoal(t, db, clientID, "Trip", domain.GoalTypeGeneral, 20000, start, start.AddDate(1, 0, 0))
	testingpkg.SeedClassTotals(t, db, clientID, domain.ClassVector{1000, 2000, 0, 0})
	testingpkg.SeedSlice(t, db, goalA, domain.ClassVector{50, 80, 0, 0})
	testingpkg.SeedSlice(t, db, goalB, domain.ClassVector{50, 20, 0, 0})

	return &env{db: db, router: router, clientID: clientID, goalA: goalA, goalB: goalB}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	}
	return w, response
}

func TestHandleGetAllocations(t *testing.T) {
	e := setup(t)

	w, response := e.do(t, "GET", "/clients/"+itoa(e.clientID)+"/allocations", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, response, "metadata")
	data := response["data"].(map[string]interface{})
	goals := data["goals"].([]interface{})
	require.Len(t, goals, 2)

	first := goals[0].(map[string]interface{})
	assert.Equal(t, float64(e.goalA), first["goal_id"])
	assert.InDelta(t, 2100, first["total"], 1e-9)
}

func TestHandleValidate(t *testing.T) {
	e := setup(t)

	w, response := e.do(t, "GET", "/clients/"+itoa(e.clientID)+"/slices/validation", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["valid"])
}

func TestHandleSetSlices(t *testing.T) {
	e := setup(t)
	path := "/clients/" + itoa(e.clientID) + "/slices"

	w, response := e.do(t, "PUT", path, SetSlicesRequest{Slices: map[string]domain.ClassVector{
		itoa(e.goalA): {60, 80, 0, 0},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, response["error"], "expected 100%")

	w, _ = e.do(t, "PUT", path, SetSlicesRequest{Slices: map[string]domain.ClassVector{
		itoa(e.goalA): {60, 80, 0, 0},
		itoa(e.goalB): {40, 20, 0, 0},
	}})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, "PUT", path, map[string]interface{}{"slices": map[string]interface{}{"abc": map[string]float64{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleResetAndUnassigned(t *testing.T) {
	e := setup(t)
	base := "/clients/" + itoa(e.clientID)

	w, response := e.do(t, "DELETE", base+"/slices", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["removed"])

	w, response = e.do(t, "GET", base+"/unassigned", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 3000, response["data"].(map[string]interface{})["total_unassigned"], 1e-9)
}

func TestHandleRepair(t *testing.T) {
	e := setup(t)

	w, _ := e.do(t, "POST", "/clients/"+itoa(e.clientID)+"/slices/repair", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidClientID(t *testing.T) {
	e := setup(t)

	w, _ := e.do(t, "GET", "/clients/abc/allocations", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
