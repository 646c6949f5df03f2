// Package indicators stores economic reference indicators such as the
// annual inflation index used by goal projections.
package indicators

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// InflationIndicator is the indicator name holding the trailing twelve month IPCA
const InflationIndicator = "IPCA_12M"

// DefaultFallbackInflation is used when no inflation reading has been recorded
const DefaultFallbackInflation = 4.5

const dateLayout = "2006-01-02"

// Reading is one stored indicator value
type Reading struct {
	ReferenceDate time.Time `json:"reference_date"`
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
}

// Repository handles economic indicator persistence
type Repository struct {
	db       *sql.DB
	fallback float64
	log      zerolog.Logger
}

// NewRepository creates a new indicator repository. fallback is returned by
// LatestAnnualInflation when nothing has been recorded.
func NewRepository(db *sql.DB, fallback float64, log zerolog.Logger) *Repository {
	return &Repository{
		db:       db,
		fallback: fallback,
		log:      log.With().Str("repo", "indicators").Logger(),
	}
}

// Record stores a reading, replacing any value for the same name and date
func (r *Repository) Record(reading Reading) error {
	_, err := r.db.Exec(
		`INSERT INTO economic_indicators (name, value, reference_date) VALUES (?, ?, ?)
		 ON CONFLICT(name, reference_date) DO UPDATE SET value = excluded.value`,
		reading.Name, reading.Value, reading.ReferenceDate.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record indicator %s: %w", reading.Name, err)
	}
	return nil
}

// Latest returns the most recent reading of an indicator, or nil when none exists
func (r *Repository) Latest(name string) (*Reading, error) {
	var reading Reading
	var refDate string

	err := r.db.QueryRow(
		`SELECT name, value, reference_date FROM economic_indicators
		 WHERE name = ? ORDER BY reference_date DESC LIMIT 1`,
		name,
	).Scan(&reading.Name, &reading.Value, &refDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator %s: %w", name, err)
	}

	if reading.ReferenceDate, err = time.Parse(dateLayout, refDate); err != nil {
		return nil, fmt.Errorf("indicator %s has invalid reference_date %q: %w", name, refDate, err)
	}
	return &reading, nil
}

// LatestAnnualInflation returns the latest annual inflation in percent,
// falling back to the configured constant when no reading exists.
func (r *Repository) LatestAnnualInflation() (float64, error) {
	reading, err := r.Latest(InflationIndicator)
	if err != nil {
		return 0, err
	}
	if reading == nil {
		r.log.Debug().Float64("fallback", r.fallback).Msg("No inflation reading, using fallback")
		return r.fallback, nil
	}
	return reading.Value, nil
}
