package testing

import (
	"strconv"
	"testing"
	"time"

	"github.com/aristath/geld/internal/database"
	"github.com/aristath/geld/internal/domain"
)

// DateLayout is the storage layout of goal dates.
const DateLayout = "2006-01-02"

// SeedClient inserts a client and returns its id.
func SeedClient(t *testing.T, db *database.DB, name string) int64 {
	t.Helper()
	res, err := db.Conn().Exec("INSERT INTO clients (name, created_at) VALUES (?, ?)", name, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to seed client: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// SeedInstrument inserts an instrument and returns its id.
func SeedInstrument(t *testing.T, db *database.DB, name string, level domain.RiskLevel, subtype domain.LowRiskSubtype, unitPrice string) int64 {
	t.Helper()
	var sub interface{}
	if subtype != domain.LowRiskSubtypeNone {
		sub = string(subtype)
	}
	res, err := db.Conn().Exec(
		"INSERT INTO instruments (name, risk_level, low_risk_subtype, unit_price) VALUES (?, ?, ?, ?)",
		name, string(level), sub, unitPrice,
	)
	if err != nil {
		t.Fatalf("Failed to seed instrument: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// SeedHolding inserts a holding.
func SeedHolding(t *testing.T, db *database.DB, clientID, instrumentID int64, units string) {
	t.Helper()
	_, err := db.Conn().Exec(
		"INSERT INTO holdings (client_id, instrument_id, units) VALUES (?, ?, ?)",
		clientID, instrumentID, units,
	)
	if err != nil {
		t.Fatalf("Failed to seed holding: %v", err)
	}
}

// SeedGoal inserts a goal and returns its id.
func SeedGoal(t *testing.T, db *database.DB, clientID int64, name string, goalType domain.GoalType, targetValue float64, start, target time.Time) int64 {
	t.Helper()
	now := time.Now().Unix()
	res, err := db.Conn().Exec(
		`INSERT INTO goals (client_id, name, goal_type, target_value, start_date, target_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		clientID, name, string(goalType), targetValue, start.Format(DateLayout), target.Format(DateLayout), now, now,
	)
	if err != nil {
		t.Fatalf("Failed to seed goal: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// SeedSlice inserts an ownership slice for a goal.
func SeedSlice(t *testing.T, db *database.DB, goalID int64, pct domain.ClassVector) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO ownership_slices (goal_id, pct_low_di, pct_low_credit, pct_moderate, pct_high, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		goalID, pct[domain.LowRiskFixedIncome], pct[domain.LowRiskCreditSpread], pct[domain.Moderate], pct[domain.High], time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("Failed to seed slice: %v", err)
	}
}

// SeedClassTotals creates one instrument per class priced at 1 and a holding
// with units equal to the requested total, so the client's class totals match exactly.
func SeedClassTotals(t *testing.T, db *database.DB, clientID int64, totals domain.ClassVector) {
	t.Helper()
	specs := []struct {
		class   domain.RiskClass
		level   domain.RiskLevel
		subtype domain.LowRiskSubtype
	}{
		{domain.LowRiskFixedIncome, domain.RiskLevelLow, domain.LowRiskSubtypeDI},
		{domain.LowRiskCreditSpread, domain.RiskLevelLow, domain.LowRiskSubtypeCredit},
		{domain.Moderate, domain.RiskLevelModerate, domain.LowRiskSubtypeNone},
		{domain.High, domain.RiskLevelHigh, domain.LowRiskSubtypeNone},
	}
	for _, s := range specs {
		if totals[s.class] == 0 {
			continue
		}
		instrumentID := SeedInstrument(t, db, s.class.String()+" fund", s.level, s.subtype, "1")
		SeedHolding(t, db, clientID, instrumentID, formatFloat(totals[s.class]))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
