/*
errors.go - Centralized error taxonomy for the loan engine

PURPOSE:
  All engine error types in one place. Callers classify failures with
  errors.Is/errors.As; structured variants carry enough context to build a
  useful client-facing message.

ERROR CATEGORIES:
  1. Validation errors  - bad installment count, out-of-range rate, bad amounts
  2. Not-found errors   - absent customer/loan/installments
  3. Authorization      - unauthenticated or acting for another customer
  4. Credit errors      - loan would exceed the credit limit
  5. Payment errors     - payment covers no eligible installment
  6. Concurrency errors - optimistic version conflicts (retryable)

RETRY CONTRACT:
  Only ErrVersionConflict is retryable. Everything else must surface to the
  caller unchanged, with no state committed.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrNoInstallments is returned when a loan has no installment schedule.
	// A loan without installments is an inconsistent state.
	ErrNoInstallments = errors.New("no installments found for loan")

	// ErrUnauthorized is returned when the actor may not perform the operation.
	ErrUnauthorized = errors.New("access denied")

	// ErrInsufficientCredit is returned when a loan would exceed the
	// customer's credit limit.
	ErrInsufficientCredit = errors.New("insufficient credit limit")

	// ErrPaymentInsufficient is returned when a payment cannot fully cover
	// any eligible installment. No partial state is ever committed.
	ErrPaymentInsufficient = errors.New("payment insufficient")

	// ErrVersionConflict is returned by stores when an entity was modified
	// concurrently. The whole operation should be retried from fresh state.
	ErrVersionConflict = errors.New("optimistic version conflict")

	// ErrInstallmentAlreadyPaid guards the monotonic paid flag.
	ErrInstallmentAlreadyPaid = errors.New("installment already paid")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientCreditError reports how far a loan request overshoots the limit.
type InsufficientCreditError struct {
	CustomerID CustomerID
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("customer %s does not have enough credit limit: requested %s, available %s",
		e.CustomerID, e.Requested, e.Available)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// PaymentInsufficientError reports a payment that covered no installment.
type PaymentInsufficientError struct {
	LoanID LoanID
	Amount decimal.Decimal
}

func (e *PaymentInsufficientError) Error() string {
	return fmt.Sprintf("payment of %s is insufficient to cover any eligible installment of loan %s",
		e.Amount, e.LoanID)
}

func (e *PaymentInsufficientError) Unwrap() error { return ErrPaymentInsufficient }

// ConflictError is surfaced when optimistic retries are exhausted.
type ConflictError struct {
	Operation string
	Attempts  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, ErrVersionConflict)
}

func (e *ConflictError) Unwrap() error { return ErrVersionConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrNoInstallments)
}

// IsClientError returns true if the error is due to invalid client input
// rather than an engine fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrPaymentInsufficient)
}
