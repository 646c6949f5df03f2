package rebalancing

import (
	"github.com/aristath/geld/internal/domain"
	"github.com/aristath/geld/internal/modules/matrix"
)

// Distribute splits a signed movement across risk classes following the
// row's allocation. Positive amounts are contributions, negative amounts
// withdrawals. Sufficient funds are not checked here.
//
// Formula:
//
//	lowDI     = amount * low * diWithinLow / 10000
//	lowCredit = amount * low * creditWithinLow / 10000
//	moderate  = amount * moderate / 100
//	high      = amount * high / 100
func Distribute(amount float64, row matrix.Row) domain.ClassVector {
	return row.Allocation().Scale(amount / 100)
}
