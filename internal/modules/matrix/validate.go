package matrix

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/aristath/geld/internal/domain"
)

// SumTolerance is the allowed deviation from 100 for row sums.
const SumTolerance = 0.1

// Issue describes one problem found in a table.
type Issue struct {
	GoalType      domain.GoalType `json:"goal_type"`
	HorizonMonths int             `json:"months"`
	Message       string          `json:"message"`
}

// Validate checks every row and ladder coverage for both goal types.
func (t *Table) Validate() []Issue {
	var issues []Issue

	for _, goalType := range []domain.GoalType{domain.GoalTypeGeneral, domain.GoalTypeRetirement} {
		byRung := t.rows[goalType]
		for _, rung := range Ladder {
			if _, ok := byRung[rung]; !ok {
				issues = append(issues, Issue{goalType, rung, "missing ladder rung"})
			}
		}

		rungs := make([]int, 0, len(byRung))
		for rung := range byRung {
			rungs = append(rungs, rung)
		}
		sort.Ints(rungs)

		for _, rung := range rungs {
			issues = append(issues, validateRow(goalType, byRung[rung])...)
		}
	}

	return issues
}

func validateRow(goalType domain.GoalType, row Row) []Issue {
	var issues []Issue

	if !isLadderRung(row.HorizonMonths) {
		issues = append(issues, Issue{goalType, row.HorizonMonths, "horizon is not a ladder rung"})
	}

	main := []float64{row.PercentLow, row.PercentModerate, row.PercentHigh}
	split := []float64{row.PercentDIWithinLow, row.PercentCreditWithinLow}

	if floats.Min(main) < 0 || floats.Min(split) < 0 {
		issues = append(issues, Issue{goalType, row.HorizonMonths, "negative percentage"})
	}
	if sum := floats.Sum(main); math.Abs(sum-100) > SumTolerance {
		issues = append(issues, Issue{goalType, row.HorizonMonths, fmt.Sprintf("low+moderate+high sums to %.2f", sum)})
	}
	if sum := floats.Sum(split); math.Abs(sum-100) > SumTolerance {
		issues = append(issues, Issue{goalType, row.HorizonMonths, fmt.Sprintf("di+credit sums to %.2f", sum)})
	}

	return issues
}

func isLadderRung(months int) bool {
	for _, rung := range Ladder {
		if rung == months {
			return true
		}
	}
	return false
}
