package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoalType selects which target matrix a goal consults.
type GoalType string

const (
	GoalTypeGeneral    GoalType = "general"
	GoalTypeRetirement GoalType = "retirement"
)

// ParseGoalType validates a goal type string.
func ParseGoalType(s string) (GoalType, error) {
	switch GoalType(strings.ToLower(strings.TrimSpace(s))) {
	case GoalTypeGeneral:
		return GoalTypeGeneral, nil
	case GoalTypeRetirement:
		return GoalTypeRetirement, nil
	}
	return "", &ValidationError{Field: "goal_type", Message: fmt.Sprintf("unknown goal type %q", s)}
}

// RiskLevel is the coarse risk tag carried by an instrument.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
)

// LowRiskSubtype splits low risk instruments into the two low buckets.
type LowRiskSubtype string

const (
	LowRiskSubtypeNone   LowRiskSubtype = ""
	LowRiskSubtypeDI     LowRiskSubtype = "di"
	LowRiskSubtypeCredit LowRiskSubtype = "credit"
)

// Client owns holdings and goals.
type Client struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	ID        int64     `json:"id"`
}

// Instrument is a priced asset. UnitPrice is maintained by the quote import and read-only here.
type Instrument struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Name      string          `json:"name"`
	RiskLevel RiskLevel       `json:"risk_level"`
	Subtype   LowRiskSubtype  `json:"low_risk_subtype,omitempty"`
	ID        int64           `json:"id"`
}

// RiskClass buckets the instrument. Untagged low risk instruments land in the credit spread bucket.
func (i Instrument) RiskClass() RiskClass {
	switch i.RiskLevel {
	case RiskLevelModerate:
		return Moderate
	case RiskLevelHigh:
		return High
	}
	if i.Subtype == LowRiskSubtypeDI {
		return LowRiskFixedIncome
	}
	return LowRiskCreditSpread
}

// Holding is a client's unit count in one instrument.
type Holding struct {
	Units        decimal.Decimal `json:"units"`
	ID           int64           `json:"id"`
	ClientID     int64           `json:"client_id"`
	InstrumentID int64           `json:"instrument_id"`
}

// Position joins a holding with the instrument metadata needed to value it.
type Position struct {
	Instrument Instrument `json:"instrument"`
	Holding    Holding    `json:"holding"`
}

// Value is units times the instrument's current unit price.
func (p Position) Value() decimal.Decimal {
	return p.Holding.Units.Mul(p.Instrument.UnitPrice)
}

// Goal is a savings target owned by a client.
type Goal struct {
	StartDate   time.Time `json:"start_date"`
	TargetDate  time.Time `json:"target_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name"`
	Type        GoalType  `json:"goal_type"`
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	TargetValue float64   `json:"target_value"`
}

// HorizonMonths returns the whole calendar months from now until the goal's target date.
func (g Goal) HorizonMonths(now time.Time) int {
	return MonthsBetween(now, g.TargetDate)
}

// Validate checks the fields a goal needs before it can be stored.
func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if g.ClientID <= 0 {
		return &ValidationError{Field: "client_id", Message: "client_id is required"}
	}
	if _, err := ParseGoalType(string(g.Type)); err != nil {
		return err
	}
	if !(g.TargetValue > 0) {
		return &ValidationError{Field: "target_value", Message: "target_value must be greater than 0"}
	}
	if g.TargetDate.IsZero() {
		return &ValidationError{Field: "target_date", Message: "target_date is required"}
	}
	if !g.StartDate.IsZero() && !g.TargetDate.After(g.StartDate) {
		return &ValidationError{Field: "target_date", Message: "target_date must be after start_date"}
	}
	return nil
}

// MonthsBetween counts calendar months from a to b, ignoring the day of month.
// The result is negative when b is before a.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// OwnershipSlice is the share of each class pool that belongs to one goal, in percent.
type OwnershipSlice struct {
	UpdatedAt time.Time   `json:"updated_at"`
	GoalID    int64       `json:"goal_id"`
	Percent   ClassVector `json:"percent"`
}

// Movement is a signed cash movement requested for a goal. Positive is a contribution.
type Movement struct {
	GoalID int64   `json:"goal_id" msgpack:"goal_id"`
	Amount float64 `json:"amount" msgpack:"amount"`
}
