// Package portfolio reads client holdings and aggregates them into risk class totals.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/geld/internal/domain"
)

// PositionRepository handles holdings and instruments in the advisory database
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// ListPositions returns every holding of the client joined with its instrument
func (r *PositionRepository) ListPositions(clientID int64) ([]domain.Position, error) {
	query := `
		SELECT h.id, h.client_id, h.instrument_id, h.units,
		       i.name, i.risk_level, i.low_risk_subtype, i.unit_price
		FROM holdings h
		JOIN instruments i ON i.id = h.instrument_id
		WHERE h.client_id = ?
		ORDER BY h.id
	`

	rows, err := r.db.Query(query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var riskLevel string
		var subtype sql.NullString

		if err := rows.Scan(
			&p.Holding.ID,
			&p.Holding.ClientID,
			&p.Holding.InstrumentID,
			&p.Holding.Units,
			&p.Instrument.Name,
			&riskLevel,
			&subtype,
			&p.Instrument.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		p.Instrument.ID = p.Holding.InstrumentID
		p.Instrument.RiskLevel = domain.RiskLevel(riskLevel)
		if subtype.Valid {
			p.Instrument.Subtype = domain.LowRiskSubtype(subtype.String)
		}

		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// CreateInstrument inserts an instrument and returns its id
func (r *PositionRepository) CreateInstrument(inst domain.Instrument) (int64, error) {
	var subtype interface{}
	if inst.Subtype != domain.LowRiskSubtypeNone {
		subtype = string(inst.Subtype)
	}

	res, err := r.db.Exec(
		`INSERT INTO instruments (name, risk_level, low_risk_subtype, unit_price, price_updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		inst.Name, string(inst.RiskLevel), subtype, inst.UnitPrice.String(), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert instrument: %w", err)
	}

	return res.LastInsertId()
}

// UpdateUnitPrice stores the latest unit price of an instrument
func (r *PositionRepository) UpdateUnitPrice(instrumentID int64, price decimal.Decimal) error {
	res, err := r.db.Exec(
		"UPDATE instruments SET unit_price = ?, price_updated_at = ? WHERE id = ?",
		price.String(), time.Now().Unix(), instrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unit price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("instrument %d: %w", instrumentID, domain.ErrNotFound)
	}

	r.log.Debug().
		Int64("instrument_id", instrumentID).
		Str("price", price.String()).
		Msg("Unit price updated")

	return nil
}

// UpsertHolding sets the unit count of a client's holding
func (r *PositionRepository) UpsertHolding(clientID, instrumentID int64, units decimal.Decimal) error {
	_, err := r.db.Exec(
		`INSERT INTO holdings (client_id, instrument_id, units) VALUES (?, ?, ?)
		 ON CONFLICT(client_id, instrument_id) DO UPDATE SET units = excluded.units`,
		clientID, instrumentID, units.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}
