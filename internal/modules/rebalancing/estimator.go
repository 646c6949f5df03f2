package rebalancing

import (
	"fmt"
	"strings"

	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/pkg/formulas"
)

// PVMode selects the present value formulation.
type PVMode string

const (
	// PVModeReal discounts the target at the real rate only.
	PVModeReal PVMode = "real"
	// PVModeInflation inflates the target by the latest inflation reading and
	// discounts it at inflation plus the real rate.
	PVModeInflation PVMode = "inflation"
)

// ParsePVMode validates a mode string. Empty means real.
func ParsePVMode(s string) (PVMode, error) {
	switch PVMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PVModeReal:
		return PVModeReal, nil
	case PVModeInflation:
		return PVModeInflation, nil
	}
	return "", fmt.Errorf("unknown present value mode %q", s)
}

// Rates are the inputs of a present value computation fixed for one snapshot.
type Rates struct {
	Mode               PVMode  `json:"mode" msgpack:"mode"`
	RealAnnualPercent  float64 `json:"real_annual_percent" msgpack:"real_annual_percent"`
	AnnualInflationPct float64 `json:"annual_inflation_percent" msgpack:"annual_inflation_percent"`
}

// PresentValue is the capital needed today to reach target after months
func (r Rates) PresentValue(target float64, months int) float64 {
	if r.Mode == PVModeInflation {
		return formulas.PresentValueInflationIndexed(target, r.AnnualInflationPct, r.RealAnnualPercent, months)
	}
	return formulas.PresentValueReal(target, r.RealAnnualPercent, months)
}

// Estimator computes each goal's present value ideal
type Estimator struct {
	mode      PVMode
	realRate  float64
	inflation domain.InflationProvider
}

// NewEstimator creates an estimator. inflation may be nil in real mode.
func NewEstimator(mode PVMode, realAnnualPercent float64, inflation domain.InflationProvider) *Estimator {
	return &Estimator{mode: mode, realRate: realAnnualPercent, inflation: inflation}
}

// Rates reads the inflation provider once, when the mode needs it
func (e *Estimator) Rates() (Rates, error) {
	rates := Rates{Mode: e.mode, RealAnnualPercent: e.realRate}
	if e.mode != PVModeInflation {
		return rates, nil
	}
	if e.inflation == nil {
		return rates, &domain.ConfigurationError{Message: "inflation present value mode requires an inflation provider"}
	}

	infl, err := e.inflation.LatestAnnualInflation()
	if err != nil {
		return rates, fmt.Errorf("failed to read inflation: %w", err)
	}
	rates.AnnualInflationPct = infl
	return rates, nil
}

// PresentValueIdeal returns the goal's present value for the given horizon
func (e *Estimator) PresentValueIdeal(goal domain.Goal, horizonMonths int) (float64, error) {
	rates, err := e.Rates()
	if err != nil {
		return 0, err
	}
	return rates.PresentValue(goal.TargetValue, horizonMonths), nil
}
