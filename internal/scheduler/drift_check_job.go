package scheduler

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/events"
	"github.com/aristath/geld/internal/metrics"
	"github.com/aristath/geld/internal/modules/allocation"
)

// ClientLister lists every client that owns goals
type ClientLister interface {
	ClientIDs() ([]int64, error)
}

// SliceValidator checks one client's slice sums
type SliceValidator interface {
	ValidateSlices(clientID int64) (allocation.Validation, error)
}

// DriftCheckJob reports clients whose slice sums have drifted away from 100%.
// It never repairs anything.
type DriftCheckJob struct {
	clients   ClientLister
	validator SliceValidator
	events    *events.Manager
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewDriftCheckJob creates the drift check job
func NewDriftCheckJob(clients ClientLister, validator SliceValidator, eventManager *events.Manager, m *metrics.Metrics, log zerolog.Logger) *DriftCheckJob {
	return &DriftCheckJob{
		clients:   clients,
		validator: validator,
		events:    eventManager,
		metrics:   m,
		log:       log.With().Str("job", "slice_drift_check").Logger(),
	}
}

// Name returns the job name
func (j *DriftCheckJob) Name() string {
	return "slice_drift_check"
}

// Run validates every client and emits one event per drifting client
func (j *DriftCheckJob) Run() error {
	ids, err := j.clients.ClientIDs()
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}

	drifting := 0
	for _, id := range ids {
		v, err := j.validator.ValidateSlices(id)
		if err != nil {
			j.log.Warn().Err(err).Int64("client_id", id).Msg("Failed to validate slices")
			j.events.EmitError("scheduler", err, map[string]interface{}{
				"job":       j.Name(),
				"client_id": id,
			})
			continue
		}
		if v.Valid {
			continue
		}

		drifting++
		drift := maxDrift(v.Sums)
		j.log.Warn().
			Int64("client_id", id).
			Float64("max_drift", drift).
			Msg("Slice sums drifted")
		j.events.EmitTyped("scheduler", &events.SliceDriftDetectedData{
			Sums:     v.Sums,
			ClientID: id,
			MaxDrift: drift,
		})
	}

	j.metrics.SetDriftingClients(drifting)
	j.log.Info().Int("clients", len(ids)).Int("drifting", drifting).Msg("Slice drift check completed")
	return nil
}

// maxDrift is the largest distance from 100 among owned classes
func maxDrift(sums domain.ClassVector) float64 {
	var worst float64
	for _, s := range sums {
		if s == 0 {
			continue
		}
		worst = math.Max(worst, math.Abs(s-100))
	}
	return worst
}
