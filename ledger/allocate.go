/*
allocate.go - All-or-nothing payment allocation

PURPOSE:
  Applies an incoming payment across a loan's installments. This is the
  repayment waterfall: earlier obligations clear before later ones, and an
  installment is paid wholly or not at all.

RULES:
  1. Only unpaid installments due strictly before the payment window
     threshold (month start three months out) are eligible.
  2. Eligible installments are walked in ascending due-date order; each is
     priced via EffectiveAmount as of today.
  3. An installment is paid only if the remaining balance fully covers its
     effective amount.
  4. The first shortfall stops the walk. No partial payment, and no later
     installment is considered even if its adjusted amount is smaller.
  5. Zero installments paid is an error; the caller must commit nothing.

WHY STOP AT THE FIRST SHORTFALL:
  Skipping ahead would let a payer leapfrog an overdue obligation into a
  cheaper future one. Stopping keeps the ledger in whole-installment states
  with a simple, auditable allocation order.
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// AllocationResult summarizes what a payment achieved.
type AllocationResult struct {
	// InstallmentsPaid is how many installments the payment fully covered.
	InstallmentsPaid int

	// TotalPaid is the sum of effective amounts applied.
	TotalPaid decimal.Decimal

	// LoanFullyPaid is true when every installment on the loan is now paid.
	LoanFullyPaid bool
}

// AllocatePayment walks installments (which must be sorted ascending by due
// date) and marks leading eligible installments paid until the payment can
// no longer fully cover one. The paid installments are mutated in place and
// also returned so the caller can persist each individually.
//
// Returns a PaymentInsufficientError wrapping ErrPaymentInsufficient when
// the payment covers no installment; in that case nothing is mutated.
func AllocatePayment(installments []Installment, payment decimal.Decimal, today Date) (AllocationResult, []*Installment, error) {
	threshold := PaymentWindowThreshold(today)

	remaining := payment
	result := AllocationResult{TotalPaid: decimal.Zero}
	var paid []*Installment

	for idx := range installments {
		ins := &installments[idx]
		if ins.Paid || !ins.DueDate.Before(threshold) {
			continue
		}

		effective := EffectiveAmount(ins.Amount, today, ins.DueDate)
		if remaining.LessThan(effective) {
			// No partial payment: the first shortfall ends the walk.
			break
		}

		if err := ins.MarkPaid(effective, today); err != nil {
			return AllocationResult{}, nil, err
		}
		remaining = remaining.Sub(effective)
		result.TotalPaid = result.TotalPaid.Add(effective)
		result.InstallmentsPaid++
		paid = append(paid, ins)
	}

	if result.InstallmentsPaid == 0 {
		perr := &PaymentInsufficientError{Amount: payment}
		if len(installments) > 0 {
			perr.LoanID = installments[0].LoanID
		}
		return AllocationResult{}, nil, perr
	}

	result.LoanFullyPaid = AllPaid(installments)
	return result, paid, nil
}
