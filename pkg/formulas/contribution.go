package formulas

import "math"

// RequiredMonthlyContribution calculates the level monthly deposit needed to
// grow presentValue into the inflation-adjusted target over the given months.
//
// Formula:
//
//	ipcaM = MonthlyRate(inflation), rM = MonthlyRate(real), i = ipcaM + rM
//	FV    = target * (1 + ipcaM)^n
//	PMT   = (FV - PV*(1+i)^n) * i / ((1+i)^n - 1)
//
// Args:
//
//	presentValue: Capital already allocated to the goal
//	targetValue: Goal value in today's money
//	months: Months left until the target date
//	annualInflationPercent: Expected inflation in percent
//	realAnnualPercent: Real return in percent
//
// Returns:
//
//	Monthly contribution, never negative. With no months left the whole shortfall is due now.
func RequiredMonthlyContribution(presentValue, targetValue float64, months int, annualInflationPercent, realAnnualPercent float64) float64 {
	ipcaMonthly := MonthlyRate(annualInflationPercent)
	i := ipcaMonthly + MonthlyRate(realAnnualPercent)

	if months <= 0 {
		return math.Max(targetValue-presentValue, 0)
	}

	n := float64(months)
	futureValue := targetValue * math.Pow(1+ipcaMonthly, n)

	if i == 0 {
		return math.Max((futureValue-presentValue)/n, 0)
	}

	growth := math.Pow(1+i, n)
	pmt := (futureValue - presentValue*growth) * i / (growth - 1)

	return math.Max(pmt, 0)
}
