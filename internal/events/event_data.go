package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/geld/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// GoalCreatedData contains data for GoalCreated events
type GoalCreatedData struct {
	GoalType    string  `json:"goal_type"`
	GoalID      int64   `json:"goal_id"`
	ClientID    int64   `json:"client_id"`
	TargetValue float64 `json:"target_value"`
}

// EventType returns the event type for GoalCreatedData
func (d *GoalCreatedData) EventType() EventType { return GoalCreated }

// GoalUpdatedData contains data for GoalUpdated events
type GoalUpdatedData struct {
	GoalID   int64 `json:"goal_id"`
	ClientID int64 `json:"client_id"`
}

// EventType returns the event type for GoalUpdatedData
func (d *GoalUpdatedData) EventType() EventType { return GoalUpdated }

// GoalDeletedData contains data for GoalDeleted events
type GoalDeletedData struct {
	GoalID   int64 `json:"goal_id"`
	ClientID int64 `json:"client_id"`
}

// EventType returns the event type for GoalDeletedData
func (d *GoalDeletedData) EventType() EventType { return GoalDeleted }

// RebalanceStagedData contains data for RebalanceStaged events
type RebalanceStagedData struct {
	ExpiresAt      time.Time `json:"expires_at"`
	StagedID       string    `json:"staged_id"`
	ClientID       int64     `json:"client_id"`
	Pending        int       `json:"pending"`
	TotalMovement  float64   `json:"total_movement"`
	CascadeApplied bool      `json:"cascade_applied"`
}

// EventType returns the event type for RebalanceStagedData
func (d *RebalanceStagedData) EventType() EventType { return RebalanceStaged }

// SlicesAppliedData contains data for SlicesApplied events
type SlicesAppliedData struct {
	StagedID       string  `json:"staged_id,omitempty"`
	ClientID       int64   `json:"client_id"`
	Goals          int     `json:"goals"`
	Iterations     int     `json:"iterations"`
	TotalMovement  float64 `json:"total_movement"`
	CascadeApplied bool    `json:"cascade_applied"`
}

// EventType returns the event type for SlicesAppliedData
func (d *SlicesAppliedData) EventType() EventType { return SlicesApplied }

// StagedDiscardedData contains data for StagedDiscarded events
type StagedDiscardedData struct {
	StagedID string `json:"staged_id"`
	ClientID int64  `json:"client_id"`
}

// EventType returns the event type for StagedDiscardedData
func (d *StagedDiscardedData) EventType() EventType { return StagedDiscarded }

// SlicesRepairedData contains data for SlicesRepaired events
type SlicesRepairedData struct {
	ClientID int64 `json:"client_id"`
	Goals    int   `json:"goals"`
}

// EventType returns the event type for SlicesRepairedData
func (d *SlicesRepairedData) EventType() EventType { return SlicesRepaired }

// SliceDriftDetectedData contains data for SliceDriftDetected events
type SliceDriftDetectedData struct {
	Sums     domain.ClassVector `json:"sums"`
	ClientID int64              `json:"client_id"`
	MaxDrift float64            `json:"max_drift"`
}

// EventType returns the event type for SliceDriftDetectedData
func (d *SliceDriftDetectedData) EventType() EventType { return SliceDriftDetected }

// StagedResultsCleanedData contains data for StagedResultsCleaned events
type StagedResultsCleanedData struct {
	Removed int64 `json:"removed"`
}

// EventType returns the event type for StagedResultsCleanedData
func (d *StagedResultsCleanedData) EventType() EventType { return StagedResultsCleaned }

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key      string `json:"key"`
	Checksum string `json:"sha256"`
	Database string `json:"database"`
	Bytes    int64  `json:"bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	Status   EventType `json:"-"`
	Job      string    `json:"job"`
	Error    string    `json:"error,omitempty"`
	Duration float64   `json:"duration_seconds,omitempty"`
}

// EventType returns the event type for JobStatusData
func (d *JobStatusData) EventType() EventType { return d.Status }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

// DecodeData converts an event's map payload back into its typed form
func DecodeData(e *Event) (EventData, error) {
	var data EventData
	switch e.Type {
	case GoalCreated:
		data = &GoalCreatedData{}
	case GoalUpdated:
		data = &GoalUpdatedData{}
	case GoalDeleted:
		data = &GoalDeletedData{}
	case RebalanceStaged:
		data = &RebalanceStagedData{}
	case SlicesApplied:
		data = &SlicesAppliedData{}
	case StagedDiscarded:
		data = &StagedDiscardedData{}
	case SlicesRepaired:
		data = &SlicesRepairedData{}
	case SliceDriftDetected:
		data = &SliceDriftDetectedData{}
	case StagedResultsCleaned:
		data = &StagedResultsCleanedData{}
	case BackupCompleted:
		data = &BackupCompletedData{}
	case JobStarted, JobCompleted, JobFailed:
		data = &JobStatusData{Status: e.Type}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}

	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return data, nil
}
