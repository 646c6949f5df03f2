// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Goal lifecycle
	GoalCreated EventType = "GOAL_CREATED"
	GoalUpdated EventType = "GOAL_UPDATED"
	GoalDeleted EventType = "GOAL_DELETED"

	// Rebalancing
	RebalanceStaged EventType = "REBALANCE_STAGED"
	SlicesApplied   EventType = "SLICES_APPLIED"
	StagedDiscarded EventType = "STAGED_DISCARDED"

	// Slice maintenance
	SlicesRepaired     EventType = "SLICES_REPAIRED"
	SliceDriftDetected EventType = "SLICE_DRIFT_DETECTED"

	// Background work
	StagedResultsCleaned EventType = "STAGED_RESULTS_CLEANED"
	BackupCompleted      EventType = "BACKUP_COMPLETED"
	JobStarted           EventType = "JOB_STARTED"
	JobCompleted         EventType = "JOB_COMPLETED"
	JobFailed            EventType = "JOB_FAILED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type a stream subscriber can receive
var AllEventTypes = []EventType{
	GoalCreated,
	GoalUpdated,
	GoalDeleted,
	RebalanceStaged,
	SlicesApplied,
	StagedDiscarded,
	SlicesRepaired,
	SliceDriftDetected,
	StagedResultsCleaned,
	BackupCompleted,
	JobStarted,
	JobCompleted,
	JobFailed,
	ErrorOccurred,
}
