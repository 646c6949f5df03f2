package testing

import (
	"database/sql"
	"sort"
	"sync"

	"github.com/aristath/geld/internal/domain"
)

// MockPositionStore is an in-memory domain.PositionStore
type MockPositionStore struct {
	mu        sync.RWMutex
	positions map[int64][]domain.Position
	err       error
}

// NewMockPositionStore creates a new mock position store
func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{positions: make(map[int64][]domain.Position)}
}

// SetPositions sets the positions returned for a client
func (m *MockPositionStore) SetPositions(clientID int64, positions []domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[clientID] = positions
}

// SetError sets the error to return
func (m *MockPositionStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ListPositions returns the client's positions
func (m *MockPositionStore) ListPositions(clientID int64) ([]domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.positions[clientID], nil
}

// MockGoalStore is an in-memory domain.GoalStore
type MockGoalStore struct {
	mu    sync.RWMutex
	goals map[int64]domain.Goal
	err   error
}

// NewMockGoalStore creates a new mock goal store
func NewMockGoalStore() *MockGoalStore {
	return &MockGoalStore{goals: make(map[int64]domain.Goal)}
}

// SetGoals replaces all goals
func (m *MockGoalStore) SetGoals(goals ...domain.Goal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = make(map[int64]domain.Goal, len(goals))
	for _, g := range goals {
		m.goals[g.ID] = g
	}
}

// SetError sets the error to return
func (m *MockGoalStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ListByClient returns the client's goals ordered by id
func (m *MockGoalStore) ListByClient(clientID int64) ([]domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Goal
	for _, g := range m.goals {
		if g.ClientID == clientID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID returns a goal or domain.ErrNotFound
func (m *MockGoalStore) GetByID(goalID int64) (*domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.goals[goalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

// MockSliceStore is an in-memory domain.SliceStore. The transaction argument is ignored.
type MockSliceStore struct {
	mu     sync.RWMutex
	slices map[int64]domain.OwnershipSlice
	owner  map[int64]int64 // goal -> client
	err    error
}

// NewMockSliceStore creates a new mock slice store
func NewMockSliceStore() *MockSliceStore {
	return &MockSliceStore{
		slices: make(map[int64]domain.OwnershipSlice),
		owner:  make(map[int64]int64),
	}
}

// SetSlice stores a slice for a goal owned by clientID
func (m *MockSliceStore) SetSlice(clientID, goalID int64, pct domain.ClassVector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slices[goalID] = domain.OwnershipSlice{GoalID: goalID, Percent: pct}
	m.owner[goalID] = clientID
}

// SetError sets the error to return
func (m *MockSliceStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetByGoal returns the slice for a goal or nil when absent
func (m *MockSliceStore) GetByGoal(goalID int64) (*domain.OwnershipSlice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.slices[goalID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// ListByClient returns all slices of the client's goals keyed by goal id
func (m *MockSliceStore) ListByClient(clientID int64) (map[int64]domain.OwnershipSlice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]domain.OwnershipSlice)
	for goalID, s := range m.slices {
		if m.owner[goalID] == clientID {
			out[goalID] = s
		}
	}
	return out, nil
}

// UpsertTx stores the slice
func (m *MockSliceStore) UpsertTx(_ *sql.Tx, slice domain.OwnershipSlice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.slices[slice.GoalID] = slice
	return nil
}

// DeleteTx removes the slice
func (m *MockSliceStore) DeleteTx(_ *sql.Tx, goalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.slices, goalID)
	return nil
}
