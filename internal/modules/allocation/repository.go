// Package allocation maintains ownership slices: the share of each risk class
// pool that belongs to each goal.
package allocation

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/domain"
)

// Repository handles ownership slice persistence
// Database: advisory.db (ownership_slices joined with goals for client scoping)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new slice repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// GetByGoal returns the goal's slice, or nil when the goal has none yet
func (r *Repository) GetByGoal(goalID int64) (*domain.OwnershipSlice, error) {
	row := r.db.QueryRow(`
		SELECT goal_id, pct_low_di, pct_low_credit, pct_moderate, pct_high, updated_at
		FROM ownership_slices WHERE goal_id = ?`, goalID)

	s, err := scanSlice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByClient returns the slices of all the client's goals keyed by goal id
func (r *Repository) ListByClient(clientID int64) (map[int64]domain.OwnershipSlice, error) {
	rows, err := r.db.Query(`
		SELECT s.goal_id, s.pct_low_di, s.pct_low_credit, s.pct_moderate, s.pct_high, s.updated_at
		FROM ownership_slices s
		JOIN goals g ON g.id = s.goal_id
		WHERE g.client_id = ?`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ownership slices: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]domain.OwnershipSlice)
	for rows.Next() {
		s, err := scanSlice(rows)
		if err != nil {
			return nil, err
		}
		result[s.GoalID] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ownership slices: %w", err)
	}

	return result, nil
}

// UpsertTx writes a slice inside the caller's transaction
func (r *Repository) UpsertTx(tx *sql.Tx, slice domain.OwnershipSlice) error {
	updatedAt := slice.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO ownership_slices (goal_id, pct_low_di, pct_low_credit, pct_moderate, pct_high, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(goal_id) DO UPDATE SET
			pct_low_di = excluded.pct_low_di,
			pct_low_credit = excluded.pct_low_credit,
			pct_moderate = excluded.pct_moderate,
			pct_high = excluded.pct_high,
			updated_at = excluded.updated_at
	`

	p := slice.Percent
	_, err := tx.Exec(query,
		slice.GoalID,
		p[domain.LowRiskFixedIncome],
		p[domain.LowRiskCreditSpread],
		p[domain.Moderate],
		p[domain.High],
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ownership slice for goal %d: %w", slice.GoalID, err)
	}

	r.log.Debug().
		Int64("goal_id", slice.GoalID).
		Float64("low_di", p[domain.LowRiskFixedIncome]).
		Float64("low_credit", p[domain.LowRiskCreditSpread]).
		Float64("moderate", p[domain.Moderate]).
		Float64("high", p[domain.High]).
		Msg("Ownership slice upserted")

	return nil
}

// DeleteTx removes a goal's slice. Missing slices are not an error.
func (r *Repository) DeleteTx(tx *sql.Tx, goalID int64) error {
	if _, err := tx.Exec("DELETE FROM ownership_slices WHERE goal_id = ?", goalID); err != nil {
		return fmt.Errorf("failed to delete ownership slice for goal %d: %w", goalID, err)
	}
	return nil
}

// DeleteByClientTx removes every slice of the client's goals
func (r *Repository) DeleteByClientTx(tx *sql.Tx, clientID int64) (int64, error) {
	res, err := tx.Exec(
		"DELETE FROM ownership_slices WHERE goal_id IN (SELECT id FROM goals WHERE client_id = ?)",
		clientID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ownership slices for client %d: %w", clientID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSlice(s scanner) (domain.OwnershipSlice, error) {
	var slice domain.OwnershipSlice
	var updatedAt int64
	err := s.Scan(
		&slice.GoalID,
		&slice.Percent[domain.LowRiskFixedIncome],
		&slice.Percent[domain.LowRiskCreditSpread],
		&slice.Percent[domain.Moderate],
		&slice.Percent[domain.High],
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return slice, err
	}
	if err != nil {
		return slice, fmt.Errorf("failed to scan ownership slice: %w", err)
	}
	slice.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return slice, nil
}
