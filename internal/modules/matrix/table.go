package matrix

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/geld/internal/domain"
)

// Table is an immutable lookup of rows keyed by goal type and ladder rung.
type Table struct {
	rows map[domain.GoalType]map[int]Row
}

// NewTable builds a table from rows and validates it. Any issue is reported as
// a ConfigurationError since the table is reference data.
func NewTable(rows map[domain.GoalType][]Row) (*Table, error) {
	t := &Table{rows: make(map[domain.GoalType]map[int]Row, len(rows))}
	for goalType, list := range rows {
		byRung := make(map[int]Row, len(list))
		for _, row := range list {
			if _, dup := byRung[row.HorizonMonths]; dup {
				return nil, &domain.ConfigurationError{
					GoalType:      goalType,
					HorizonMonths: row.HorizonMonths,
					Message:       "duplicate matrix row",
				}
			}
			byRung[row.HorizonMonths] = row
		}
		t.rows[goalType] = byRung
	}

	if issues := t.Validate(); len(issues) > 0 {
		first := issues[0]
		return nil, &domain.ConfigurationError{
			GoalType:      first.GoalType,
			HorizonMonths: first.HorizonMonths,
			Message:       fmt.Sprintf("%s (%d issues)", first.Message, len(issues)),
		}
	}

	return t, nil
}

// Default returns the built-in table. The built-in data is known to be valid.
func Default() *Table {
	t, err := NewTable(DefaultRows())
	if err != nil {
		panic(err)
	}
	return t
}

// SnapHorizon maps a horizon to the nearest ladder rung by absolute distance.
// When two rungs are equally close the lower one wins.
func SnapHorizon(months int) int {
	best := Ladder[0]
	bestDist := absInt(months - best)
	for _, rung := range Ladder[1:] {
		// strict comparison keeps the earlier, lower rung on ties
		if d := absInt(months - rung); d < bestDist {
			best, bestDist = rung, d
		}
	}
	return best
}

// Lookup returns the row for a goal type and raw horizon.
func (t *Table) Lookup(goalType domain.GoalType, horizonMonths int) (Row, error) {
	rung := SnapHorizon(horizonMonths)
	row, ok := t.rows[goalType][rung]
	if !ok {
		return Row{}, &domain.ConfigurationError{
			GoalType:      goalType,
			HorizonMonths: rung,
			Message:       "no target matrix row",
		}
	}
	return row, nil
}

// Rows returns the rows for a goal type sorted by horizon.
func (t *Table) Rows(goalType domain.GoalType) []Row {
	out := make([]Row, 0, len(t.rows[goalType]))
	for _, row := range t.rows[goalType] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorizonMonths < out[j].HorizonMonths })
	return out
}

// Resolver resolves goals to rows relative to the current time.
type Resolver struct {
	table *Table
	now   func() time.Time
}

// NewResolver creates a resolver. A nil clock uses time.Now.
func NewResolver(table *Table, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{table: table, now: now}
}

// TargetMatrix returns the row for the goal's type and current horizon.
func (r *Resolver) TargetMatrix(goal domain.Goal) (Row, error) {
	return r.TargetMatrixAt(goal, r.now())
}

// TargetMatrixAt resolves the goal as of a fixed instant, so every goal of a
// snapshot is measured against the same clock.
func (r *Resolver) TargetMatrixAt(goal domain.Goal, now time.Time) (Row, error) {
	return r.table.Lookup(goal.Type, goal.HorizonMonths(now))
}

func absInt(v int) int {
	return int(math.Abs(float64(v)))
}
