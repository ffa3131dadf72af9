/*
pricing.go - Time-adjusted installment pricing

PURPOSE:
  Computes the amount actually due for a single installment as of a given
  day. Paying early earns a discount, paying late incurs a penalty, both
  proportional to the day gap.

THE RULE:
  daysDiff  = dueDate - today (signed, in days)
  adjustment = base * 0.001 * |daysDiff|

  daysDiff > 0 (early):   effective = base - adjustment
  daysDiff < 0 (overdue): effective = base + adjustment
  daysDiff = 0:           effective = base

  Result is rounded to 2 decimal places, half-up.

NO FLOOR AT ZERO:
  The discount is unbounded. For a far-future due date the effective amount
  can go below zero. That is the product's pricing rule, not a defect;
  callers must not assume non-negativity. Do not clamp here.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// dailyAdjustmentRate is the per-day discount/penalty factor.
var dailyAdjustmentRate = decimal.RequireFromString("0.001")

// EffectiveAmount returns the time-adjusted amount due for an installment
// with the given base amount, evaluated as of today. Pure function.
func EffectiveAmount(base decimal.Decimal, today, dueDate Date) decimal.Decimal {
	daysDiff := DaysBetween(today, dueDate)
	if daysDiff == 0 {
		return base.Round(2)
	}

	days := decimal.NewFromInt(int64(abs(daysDiff)))
	adjustment := base.Mul(dailyAdjustmentRate).Mul(days)

	var effective decimal.Decimal
	if daysDiff > 0 {
		// Early payment discount.
		effective = base.Sub(adjustment)
	} else {
		// Late payment penalty.
		effective = base.Add(adjustment)
	}
	return effective.Round(2)
}

// RemainingFee sums the effective amounts of all unpaid installments as of
// today. This is the derived Loan.RemainingFee value.
func RemainingFee(installments []Installment, today Date) decimal.Decimal {
	total := decimal.Zero
	for _, ins := range installments {
		if ins.Paid {
			continue
		}
		total = total.Add(EffectiveAmount(ins.Amount, today, ins.DueDate))
	}
	return total.Round(2)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
