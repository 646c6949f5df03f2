package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/locks"
	"github.com/aristath/geld/internal/utils"
)

// SystemHandlers serves health, status and the live event stream
type SystemHandlers struct {
	advisoryDB *database.DB
	cacheDB    *database.DB
	bus        *events.Bus
	locks      *locks.ClientLocks
	origins    []string
	started    time.Time
	log        zerolog.Logger
}

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(advisoryDB, cacheDB *database.DB, bus *events.Bus, clientLocks *locks.ClientLocks, origins []string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		advisoryDB: advisoryDB,
		cacheDB:    cacheDB,
		bus:        bus,
		locks:      clientLocks,
		origins:    origins,
		started:    time.Now(),
		log:        log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string            `json:"status"`
	Databases     map[string]string `json:"databases"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	Goroutines    int               `json:"goroutines"`
	Subscribers   int               `json:"event_subscribers"`
	ClientLocks   int               `json:"client_locks"`
}

// HandleHealth handles GET /health. It fails when either database is unreachable.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dbs := h.databaseStatus(r.Context())
	status := http.StatusOK
	for _, s := range dbs {
		if s != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	body := map[string]interface{}{"status": "healthy", "databases": dbs}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	utils.WriteJSON(w, status, body, h.log)
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	dbs := h.databaseStatus(r.Context())
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "ok",
		Databases:     dbs,
		UptimeSeconds: time.Since(h.started).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Subscribers:   h.bus.Subscribers(),
		ClientLocks:   h.locks.Held(),
	}
	for _, s := range dbs {
		if s != "ok" {
			resp.Status = "degraded"
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":     resp,
		"metadata": map[string]interface{}{"timestamp": time.Now().Format(time.RFC3339)},
	}, h.log)
}

func (h *SystemHandlers) databaseStatus(ctx context.Context) map[string]string {
	out := make(map[string]string, 2)
	for _, db := range []*database.DB{h.advisoryDB, h.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			out[db.Name()] = err.Error()
			continue
		}
		out[db.Name()] = "ok"
	}
	return out
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// blocks for 100ms.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
