package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/geld/internal/domain"
)

// Aggregator sums a client's holdings into per risk class totals
type Aggregator struct {
	positions domain.PositionStore
}

// NewAggregator creates a new position aggregator
func NewAggregator(positions domain.PositionStore) *Aggregator {
	return &Aggregator{positions: positions}
}

// ClassTotals returns the value held in each risk class. A client without
// holdings yields a zero vector.
func (a *Aggregator) ClassTotals(clientID int64) (domain.ClassVector, error) {
	positions, err := a.positions.ListPositions(clientID)
	if err != nil {
		return domain.ClassVector{}, fmt.Errorf("failed to list positions for client %d: %w", clientID, err)
	}
	return Totals(positions), nil
}

// Totals buckets position values by risk class. Values are accumulated in
// decimal and converted to float once per class.
func Totals(positions []domain.Position) domain.ClassVector {
	var sums [domain.NumRiskClasses]decimal.Decimal
	for i := range sums {
		sums[i] = decimal.Zero
	}

	for _, p := range positions {
		c := p.Instrument.RiskClass()
		sums[c] = sums[c].Add(p.Value())
	}

	var totals domain.ClassVector
	for i, sum := range sums {
		totals[i] = sum.InexactFloat64()
	}
	return totals
}
