// Package matrix holds the target allocation matrices and resolves a goal to
// the row matching its type and horizon.
package matrix

import "github.com/aristath/geld/internal/domain"

// Ladder is the fixed set of horizon rungs, in months.
var Ladder = []int{12, 24, 36, 48, 60, 72, 84, 96, 108, 120, 132}

// Row is one target allocation entry. The low bucket is further split into
// a DI share and a credit spread share, both in percent of the low bucket.
type Row struct {
	HorizonMonths          int     `yaml:"months" json:"months"`
	PercentLow             float64 `yaml:"low" json:"percent_low"`
	PercentModerate        float64 `yaml:"moderate" json:"percent_moderate"`
	PercentHigh            float64 `yaml:"high" json:"percent_high"`
	PercentDIWithinLow     float64 `yaml:"di_within_low" json:"percent_di_within_low"`
	PercentCreditWithinLow float64 `yaml:"credit_within_low" json:"percent_credit_within_low"`
}

// Allocation expands the row into a percentage per risk class.
func (r Row) Allocation() domain.ClassVector {
	return domain.ClassVector{
		domain.LowRiskFixedIncome:  r.PercentLow * r.PercentDIWithinLow / 100,
		domain.LowRiskCreditSpread: r.PercentLow * r.PercentCreditWithinLow / 100,
		domain.Moderate:            r.PercentModerate,
		domain.High:                r.PercentHigh,
	}
}

var generalRows = []Row{
	{12, 85, 13.5, 1.5, 100, 0},
	{24, 78.5, 17.85, 3.66, 15, 85},
	{36, 72, 21.28, 6.72, 5, 95},
	{48, 65.5, 23.81, 10.7, 5, 95},
	{60, 59, 25.42, 15.58, 5, 95},
	{72, 52.5, 26.13, 21.38, 5, 95},
	{84, 46, 25.92, 28.08, 5, 95},
	{96, 39.5, 24.81, 35.70, 5, 95},
	{108, 33, 22.78, 44.22, 5, 95},
	{120, 26.5, 19.85, 53.66, 5, 95},
	{132, 20, 16, 64, 5, 95},
}

var retirementRows = []Row{
	{12, 90, 8.5, 1.5, 100, 0},
	{24, 85, 13, 2, 20, 80},
	{36, 80, 16, 4, 10, 90},
	{48, 75, 19, 6, 10, 90},
	{60, 70, 22, 8, 10, 90},
	{72, 65, 24, 11, 10, 90},
	{84, 60, 25, 15, 10, 90},
	{96, 55, 26, 19, 10, 90},
	{108, 50, 26, 24, 10, 90},
	{120, 45, 25, 30, 10, 90},
	{132, 40, 24, 36, 10, 90},
}

// DefaultRows returns a copy of the built-in matrices.
func DefaultRows() map[domain.GoalType][]Row {
	return map[domain.GoalType][]Row{
		domain.GoalTypeGeneral:    append([]Row(nil), generalRows...),
		domain.GoalTypeRetirement: append([]Row(nil), retirementRows...),
	}
}
