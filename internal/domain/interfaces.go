package domain

import "database/sql"

// PositionStore reads a client's holdings joined with instrument metadata.
type PositionStore interface {
	ListPositions(clientID int64) ([]Position, error)
}

// GoalStore reads goals.
type GoalStore interface {
	ListByClient(clientID int64) ([]Goal, error)
	GetByID(goalID int64) (*Goal, error)
}

// SliceStore reads and writes ownership slices. Writes take a transaction so
// callers can group all of a client's slices into one atomic unit.
type SliceStore interface {
	GetByGoal(goalID int64) (*OwnershipSlice, error)
	ListByClient(clientID int64) (map[int64]OwnershipSlice, error)
	UpsertTx(tx *sql.Tx, slice OwnershipSlice) error
	DeleteTx(tx *sql.Tx, goalID int64) error
}

// InflationProvider returns the most recent annual inflation index in percent.
// Implementations fall back to a documented constant when no data exists.
type InflationProvider interface {
	LatestAnnualInflation() (float64, error)
}
