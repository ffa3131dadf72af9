/*
schedule.go - Installment schedule construction

PURPOSE:
  Turns a principal, a flat add-on interest rate and a term into the loan's
  full installment schedule: N equal installments, one per month, starting
  on the first calendar day of the month after today.

AMOUNT CALCULATION:
  total repayment     = principal * (1 + rate)
  installment amount  = total repayment / N, rounded half-up to 2dp

  The rounding is applied per installment, so the schedule sum may differ
  from the exact total by a sub-cent amount absorbed by the rounding rule.

SIDE EFFECTS:
  None. The builder only constructs the in-memory list; persisting the
  schedule is the caller's responsibility.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// InstallmentAmount computes the flat equal-share amount due per
// installment, rounded half-up to 2 decimal places.
func InstallmentAmount(principal, interestRate decimal.Decimal, count int) decimal.Decimal {
	totalRepayment := principal.Mul(decimal.NewFromInt(1).Add(interestRate))
	return totalRepayment.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// BuildSchedule produces count installments for the loan, each for amount,
// with strictly increasing due dates one month apart, the first falling on
// the first calendar day of the month after today.
func BuildSchedule(loanID LoanID, amount decimal.Decimal, count int, today Date) []Installment {
	firstDue := FirstDueDate(today)

	installments := make([]Installment, 0, count)
	for i := 0; i < count; i++ {
		installments = append(installments, Installment{
			ID:      NewInstallmentID(),
			LoanID:  loanID,
			Amount:  amount,
			DueDate: firstDue.AddMonths(i),
		})
	}
	return installments
}
