package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/modules/allocation"
	"github.com/aristath/geld/internal/modules/goals"
	"github.com/aristath/geld/internal/modules/matrix"
	"github.com/aristath/geld/internal/modules/portfolio"
	"github.com/aristath/geld/internal/modules/rebalancing"
	testingpkg "github.com/aristath/geld/internal/testing"
)

type env struct {
	router   chi.Router
	clientID int64
	goalID   int64
}

func setup(t *testing.T) *env {
	t.Helper()
	adv, cleanupAdv := testingpkg.NewTestDB(t, "advisory")
	t.Cleanup(cleanupAdv)
	cache, cleanupCache := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanupCache)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	goalRepo := goals.NewRepository(adv.Conn(), log)
	sliceRepo := allocation.NewRepository(adv.Conn(), log)
	agg := portfolio.NewAggregator(portfolio.NewPositionRepository(adv.Conn(), log))

	loader := rebalancing.NewSnapshotLoader(agg, goalRepo, sliceRepo, rebalancing.NewEstimator(rebalancing.PVModeReal, 4, nil), nil)
	engine := rebalancing.NewEngine(matrix.NewResolver(matrix.Default(), nil), loader, rebalancing.DefaultConfig())
	service := rebalancing.NewService(
		adv.Conn(), engine, loader, sliceRepo, rebalancing.NewStagedRepository(cache.Conn(), log),
		locks.NewClientLocks(), nil, nil, time.Hour, log,
	)

	router := chi.NewRouter()
	NewHandler(service, log).RegisterRoutes(router)

	now := time.Now()
	clientID := testingpkg.SeedClient(t, adv, "Caio")
	goalID := testingpkg.SeedGoal(t, adv, clientID, "Car", domain.GoalTypeGeneral, 60000, now.AddDate(-1, 0, 0), now.AddDate(2, 0, 0))
	testingpkg.SeedClassTotals(t, adv, clientID, domain.ClassVector{1000, 8000, 2000, 500})
	testingpkg.SeedSlice(t, adv, goalID, domain.ClassVector{100, 100, 100, 100})

	return &env{router: router, clientID: clientID, goalID: goalID}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	}
	return w, response
}

func (e *env) clientPath(suffix string) string {
	return "/clients/" + strconv.FormatInt(e.clientID, 10) + suffix
}

func TestHandleProcess(t *testing.T) {
	e := setup(t)

	w, resp := e.do(t, http.MethodPost, e.clientPath("/rebalance/process"), RebalanceRequest{
		Movements: []domain.Movement{{GoalID: e.goalID, Amount: 1000}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	result := data["result"].(map[string]interface{})
	assert.Equal(t, 1000.0, result["total_movement"])
	assert.Len(t, data["summary"], domain.NumRiskClasses)
	assert.Contains(t, resp["metadata"], "timestamp")
}

func TestHandlePreviewApplyFlow(t *testing.T) {
	e := setup(t)

	w, resp := e.do(t, http.MethodPost, e.clientPath("/rebalance/preview"), RebalanceRequest{
		Movements: []domain.Movement{{GoalID: e.goalID, Amount: 500}},
		Cascade:   true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	stagedID := resp["data"].(map[string]interface{})["staged_id"].(string)
	require.NotEmpty(t, stagedID)

	w, _ = e.do(t, http.MethodGet, "/rebalance/staged/"+stagedID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/rebalance/staged/"+stagedID+"/report", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, w.Body.String(), "## Instructions")

	w, _ = e.do(t, http.MethodPost, "/rebalance/staged/"+stagedID+"/apply", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodPost, "/rebalance/staged/"+stagedID+"/apply", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDiscardStaged(t *testing.T) {
	e := setup(t)

	_, resp := e.do(t, http.MethodPost, e.clientPath("/rebalance/preview"), RebalanceRequest{})
	stagedID := resp["data"].(map[string]interface{})["staged_id"].(string)

	w, _ := e.do(t, http.MethodDelete, "/rebalance/staged/"+stagedID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/rebalance/staged/"+stagedID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRebalance_Errors(t *testing.T) {
	e := setup(t)

	t.Run("insufficient funds", func(t *testing.T) {
		w, resp := e.do(t, http.MethodPost, e.clientPath("/rebalance/apply"), RebalanceRequest{
			Movements: []domain.Movement{{GoalID: e.goalID, Amount: -20000}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, float64(e.goalID), resp["goal_id"])
		assert.InDelta(t, 11500, resp["available"].(float64), 1e-6)
	})

	t.Run("foreign goal", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, e.clientPath("/rebalance/apply"), RebalanceRequest{
			Movements: []domain.Movement{{GoalID: 9999, Amount: 10}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad client id", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/clients/abc/rebalance/apply", RebalanceRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, e.clientPath("/rebalance/apply"), strings.NewReader("{"))
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid staged id", func(t *testing.T) {
		w, _ := e.do(t, http.MethodGet, "/rebalance/staged/nope", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleRebalance_Persists(t *testing.T) {
	e := setup(t)

	w, resp := e.do(t, http.MethodPost, e.clientPath("/rebalance/apply"), RebalanceRequest{
		Movements: []domain.Movement{{GoalID: e.goalID, Amount: -1500}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	result := resp["data"].(map[string]interface{})["result"].(map[string]interface{})
	assert.Equal(t, -1500.0, result["total_movement"])
}
