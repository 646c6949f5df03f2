package formulas

import "math"

// MonthlyRate converts an annual rate expressed in percent into the equivalent
// monthly compounding rate as a decimal.
//
// Formula: r = (1 + annual/100)^(1/12) - 1
//
// Args:
//
//	annualPercent: Annual rate in percent (e.g., 3.5 for 3.5%)
//
// Returns:
//
//	Monthly rate as decimal (e.g., 0.00287 for 3.5% a year)
func MonthlyRate(annualPercent float64) float64 {
	return math.Pow(1+annualPercent/100, 1.0/12.0) - 1
}

// PresentValueReal discounts a target value back to today at a fixed real rate
// compounded monthly.
//
// Formula: PV = target / (1 + r)^months, r = MonthlyRate(realAnnualPercent)
//
// Args:
//
//	targetValue: Value to reach at the horizon
//	realAnnualPercent: Real annual rate in percent
//	months: Horizon in months (may be zero or negative for overdue targets)
//
// Returns:
//
//	Capital required today, with no further contributions
func PresentValueReal(targetValue, realAnnualPercent float64, months int) float64 {
	r := MonthlyRate(realAnnualPercent)
	return targetValue / math.Pow(1+r, float64(months))
}

// PresentValueInflationIndexed first inflates the target by the expected
// inflation and then discounts it at inflation plus the real rate.
//
// Formula:
//
//	FV = target * (1 + ipcaM)^months
//	PV = FV / (1 + rateM)^months
//	ipcaM = MonthlyRate(inflation), rateM = MonthlyRate(inflation + real)
//
// With inflation at zero this reduces to PresentValueReal.
func PresentValueInflationIndexed(targetValue, annualInflationPercent, realAnnualPercent float64, months int) float64 {
	ipcaMonthly := MonthlyRate(annualInflationPercent)
	rateMonthly := MonthlyRate(annualInflationPercent + realAnnualPercent)

	futureValue := targetValue * math.Pow(1+ipcaMonthly, float64(months))
	return futureValue / math.Pow(1+rateMonthly, float64(months))
}
