package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredMonthlyContribution(t *testing.T) {
	t.Run("zero rates spread the shortfall evenly", func(t *testing.T) {
		assert.InDelta(t, 1000, RequiredMonthlyContribution(0, 12000, 12, 0, 0), 1e-9)
	})

	t.Run("already funded needs nothing", func(t *testing.T) {
		assert.Equal(t, 0.0, RequiredMonthlyContribution(200000, 100000, 60, 4.5, 3.5))
	})

	t.Run("no months left returns full shortfall", func(t *testing.T) {
		assert.InDelta(t, 2500, RequiredMonthlyContribution(7500, 10000, 0, 4.5, 3.5), 1e-9)
		assert.Equal(t, 0.0, RequiredMonthlyContribution(15000, 10000, -3, 4.5, 3.5))
	})

	t.Run("annuity reaches the inflated target", func(t *testing.T) {
		pv, target, n := 10000.0, 120000.0, 60
		pmt := RequiredMonthlyContribution(pv, target, n, 4.5, 3.5)

		ipcaM := MonthlyRate(4.5)
		i := ipcaM + MonthlyRate(3.5)
		balance := pv * math.Pow(1+i, float64(n))
		balance += pmt * (math.Pow(1+i, float64(n)) - 1) / i

		assert.InDelta(t, target*math.Pow(1+ipcaM, float64(n)), balance, 1e-6)
	})

	t.Run("more time means smaller deposits", func(t *testing.T) {
		short := RequiredMonthlyContribution(0, 100000, 24, 4.5, 3.5)
		long := RequiredMonthlyContribution(0, 100000, 120, 4.5, 3.5)
		assert.Greater(t, short, long)
	})
}
