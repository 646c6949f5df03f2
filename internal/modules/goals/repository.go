// Package goals stores client savings goals and manages their lifecycle.
package goals

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
)

const dateLayout = "2006-01-02"

const goalColumns = `id, client_id, name, goal_type, target_value, start_date, target_date, created_at, updated_at`

// Repository handles goal persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new goal repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "goals").Logger(),
	}
}

// ListByClient returns the client's goals ordered by id
func (r *Repository) ListByClient(clientID int64) ([]domain.Goal, error) {
	rows, err := r.db.Query("SELECT "+goalColumns+" FROM goals WHERE client_id = ? ORDER BY id", clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	return goals, nil
}

// GetByID returns a goal or domain.ErrNotFound
func (r *Repository) GetByID(goalID int64) (*domain.Goal, error) {
	row := r.db.QueryRow("SELECT "+goalColumns+" FROM goals WHERE id = ?", goalID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %d: %w", goalID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ClientExists reports whether a client row exists
func (r *Repository) ClientExists(clientID int64) (bool, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM clients WHERE id = ?", clientID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check client: %w", err)
	}
	return n > 0, nil
}

// ClientIDs returns every client id in ascending order
func (r *Repository) ClientIDs() ([]int64, error) {
	rows, err := r.db.Query("SELECT id FROM clients ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a goal and returns its id
func (r *Repository) Create(g domain.Goal) (int64, error) {
	now := time.Now().Unix()
	res, err := r.db.Exec(
		`INSERT INTO goals (client_id, name, goal_type, target_value, start_date, target_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ClientID, g.Name, string(g.Type), g.TargetValue,
		g.StartDate.Format(dateLayout), g.TargetDate.Format(dateLayout), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert goal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read goal id: %w", err)
	}

	r.log.Info().
		Int64("goal_id", id).
		Int64("client_id", g.ClientID).
		Str("goal_type", string(g.Type)).
		Float64("target_value", g.TargetValue).
		Msg("Goal created")

	return id, nil
}

// Update overwrites the mutable fields of a goal
func (r *Repository) Update(g domain.Goal) error {
	res, err := r.db.Exec(
		`UPDATE goals SET name = ?, goal_type = ?, target_value = ?, start_date = ?, target_date = ?, updated_at = ?
		 WHERE id = ?`,
		g.Name, string(g.Type), g.TargetValue,
		g.StartDate.Format(dateLayout), g.TargetDate.Format(dateLayout), time.Now().Unix(), g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %d: %w", g.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteTx removes a goal inside the caller's transaction
func (r *Repository) DeleteTx(tx *sql.Tx, goalID int64) error {
	res, err := tx.Exec("DELETE FROM goals WHERE id = ?", goalID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %d: %w", goalID, domain.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGoal(s scanner) (domain.Goal, error) {
	var g domain.Goal
	var goalType, start, target string
	var createdAt, updatedAt int64

	if err := s.Scan(&g.ID, &g.ClientID, &g.Name, &goalType, &g.TargetValue, &start, &target, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, err
		}
		return g, fmt.Errorf("failed to scan goal: %w", err)
	}

	var err error
	if g.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return g, fmt.Errorf("goal %d has invalid start_date %q: %w", g.ID, start, err)
	}
	if g.TargetDate, err = time.Parse(dateLayout, target); err != nil {
		return g, fmt.Errorf("goal %d has invalid target_date %q: %w", g.ID, target, err)
	}

	g.Type = domain.GoalType(goalType)
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	g.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return g, nil
}
