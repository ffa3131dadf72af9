/*
Package ledger provides the core loan ledger and payment allocation engine.

PURPOSE:
  This package contains the entities and algorithms at the heart of the
  lending system: customers with credit limits, loans with monthly
  installment schedules, time-adjusted installment pricing, and the
  all-or-nothing payment allocator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: credit limit ceiling and currently used credit
  - Loan: immutable principal plus an ordered installment schedule
  - Installment: one monthly repayment unit, paid wholly or not at all
  - Typed IDs: CustomerID/LoanID/InstallmentID prevent cross-wiring

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float64
  2. One-directional ownership: a Loan owns its Installments; an
     Installment carries only an opaque LoanID back-reference
  3. Monotonic paid flags: an installment or loan never becomes unpaid
  4. Optimistic versions: every mutable entity carries a version stamp
     checked by the stores at save time

SEE ALSO:
  - schedule.go: installment schedule construction
  - pricing.go: time-adjusted effective amounts
  - allocate.go: payment allocation across installments
  - store.go: persistence interfaces with version checking
*/
package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type LoanID string
type InstallmentID string

func NewCustomerID() CustomerID       { return CustomerID(uuid.NewString()) }
func NewLoanID() LoanID               { return LoanID(uuid.NewString()) }
func NewInstallmentID() InstallmentID { return InstallmentID(uuid.NewString()) }

// AllowedInstallmentCounts lists the schedule lengths a loan may have.
var AllowedInstallmentCounts = []int{6, 9, 12, 24}

// IsAllowedInstallmentCount reports whether n is a permitted schedule length.
func IsAllowedInstallmentCount(n int) bool {
	for _, c := range AllowedInstallmentCounts {
		if c == n {
			return true
		}
	}
	return false
}

// =============================================================================
// CUSTOMER - Credit limit holder
// =============================================================================

// Customer tracks how much of a fixed credit ceiling is committed to
// outstanding loans.
//
// INVARIANT: 0 <= UsedCreditLimit <= CreditLimit at the end of every
// committed operation. CreditLimit never changes after signup.
type Customer struct {
	ID      CustomerID
	Name    string
	Surname string

	// CreditLimit is the maximum credit the customer can use.
	CreditLimit decimal.Decimal

	// UsedCreditLimit is the outstanding principal across unpaid loans.
	UsedCreditLimit decimal.Decimal

	// Version is the optimistic concurrency stamp, managed by the store.
	Version int64
}

// AvailableCredit returns the unreserved portion of the credit limit.
func (c *Customer) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.UsedCreditLimit)
}

// CanBorrow reports whether reserving amount would stay within the limit.
func (c *Customer) CanBorrow(amount decimal.Decimal) bool {
	return c.UsedCreditLimit.Add(amount).LessThanOrEqual(c.CreditLimit)
}

// AddUsedCredit reserves amount against the limit.
func (c *Customer) AddUsedCredit(amount decimal.Decimal) {
	c.UsedCreditLimit = c.UsedCreditLimit.Add(amount)
}

// SubtractUsedCredit releases amount back to the limit.
func (c *Customer) SubtractUsedCredit(amount decimal.Decimal) {
	c.UsedCreditLimit = c.UsedCreditLimit.Sub(amount)
}

// =============================================================================
// LOAN - Principal plus installment schedule
// =============================================================================

// Loan is the unit of borrowing. The principal and installment count are
// fixed at creation; only the Paid flag changes, exactly once.
type Loan struct {
	ID         LoanID
	CustomerID CustomerID

	// LoanAmount is the principal, without interest.
	LoanAmount decimal.Decimal

	// NumberOfInstallments is one of AllowedInstallmentCounts.
	NumberOfInstallments int

	CreateDate Date

	// Paid becomes true when every installment is paid. Never reversed.
	Paid bool

	Version int64

	// Installments is the full schedule, ascending by due date. Owned
	// exclusively by the loan and cascade-deleted with it.
	Installments []Installment

	// RemainingFee is derived on read: the sum of time-adjusted amounts of
	// unpaid installments as of today. Never persisted.
	RemainingFee decimal.Decimal
}

// NewLoan constructs an unpaid loan created today.
func NewLoan(customerID CustomerID, amount decimal.Decimal, installments int, today Date) *Loan {
	return &Loan{
		ID:                   NewLoanID(),
		CustomerID:           customerID,
		LoanAmount:           amount,
		NumberOfInstallments: installments,
		CreateDate:           today,
	}
}

// MarkPaid transitions the loan to its terminal paid state.
func (l *Loan) MarkPaid() {
	l.Paid = true
}

// =============================================================================
// INSTALLMENT - One monthly repayment unit
// =============================================================================

// Installment is a single scheduled repayment. Amount is the flat equal
// share fixed at creation; PaidAmount, PaymentDate and Paid mutate exactly
// once, when the installment transitions to paid.
type Installment struct {
	ID     InstallmentID
	LoanID LoanID

	// Amount is the original equal-share amount, never adjusted in place.
	Amount decimal.Decimal

	// PaidAmount is zero until paid, then the effective amount applied.
	PaidAmount decimal.Decimal

	// DueDate is always the first calendar day of a month.
	DueDate Date

	// PaymentDate is nil until the installment is paid.
	PaymentDate *Date

	Paid bool

	Version int64
}

// MarkPaid records the effective amount actually applied and the payment
// date. Paying an already-paid installment is a programming error upstream;
// the monotonic flag is guarded here.
func (i *Installment) MarkPaid(effective decimal.Decimal, paymentDate Date) error {
	if i.Paid {
		return ErrInstallmentAlreadyPaid
	}
	i.PaidAmount = effective
	i.PaymentDate = &paymentDate
	i.Paid = true
	return nil
}

// AllPaid reports whether every installment in the slice is paid.
func AllPaid(installments []Installment) bool {
	for _, ins := range installments {
		if !ins.Paid {
			return false
		}
	}
	return true
}
