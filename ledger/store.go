/*
store.go - Persistence interfaces with optimistic version checking

PURPOSE:
  Defines the boundary between the engine and the database. Implementations
  exist for SQLite (store/sqlite) and in-memory (ledger/store, for tests).

VERSION CONTRACT:
  Every mutable entity carries a Version stamp. Saving an entity whose
  in-memory version no longer matches the stored version fails with
  ErrVersionConflict; a successful save increments both. New entities have
  version 0 and are inserted at version 1. Stores never merge: a conflict
  means the whole operation re-reads fresh state and retries.

ATOMIC UNITS:
  TxStore.WithTx runs a function against a transactional view of the
  store. If the function errors, every write inside it is rolled back.
  Lifecycle operations (create/pay/delete) each run inside exactly one
  WithTx call, so readers never observe a half-applied operation.
*/
package ledger

import "context"

// =============================================================================
// CUSTOMER STORE
// =============================================================================

type CustomerStore interface {
	// GetCustomer fetches a customer by id. Fails with ErrCustomerNotFound.
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)

	// SaveCustomer inserts (Version 0) or updates the customer,
	// version-checked.
	SaveCustomer(ctx context.Context, customer *Customer) error
}

// =============================================================================
// LOAN STORE
// =============================================================================

// LoanFilter narrows ListLoansByCustomer. Nil fields match everything.
type LoanFilter struct {
	Paid                 *bool
	NumberOfInstallments *int
	CreatedFrom          *Date
	CreatedTo            *Date
}

type LoanStore interface {
	// GetLoan fetches a loan by id, without installments attached.
	// Fails with ErrLoanNotFound.
	GetLoan(ctx context.Context, id LoanID) (*Loan, error)

	// ListLoansByCustomer returns the customer's loans matching the filter,
	// each with its installments attached, ascending by create date.
	ListLoansByCustomer(ctx context.Context, customerID CustomerID, filter LoanFilter) ([]Loan, error)

	// SaveLoan inserts (Version 0) or updates the loan, version-checked.
	// Installments are persisted separately through InstallmentStore.
	SaveLoan(ctx context.Context, loan *Loan) error

	// DeleteLoan removes the loan and cascades to its installments.
	DeleteLoan(ctx context.Context, id LoanID) error
}

// =============================================================================
// INSTALLMENT STORE
// =============================================================================

type InstallmentStore interface {
	// ListInstallments returns the loan's installments ascending by due
	// date. Fails with ErrNoInstallments when the loan has none.
	ListInstallments(ctx context.Context, loanID LoanID) ([]Installment, error)

	// SaveInstallment inserts (Version 0) or updates one installment,
	// version-checked.
	SaveInstallment(ctx context.Context, installment *Installment) error

	// SaveInstallments persists a batch atomically. Used when creating a
	// loan's full schedule.
	SaveInstallments(ctx context.Context, installments []Installment) error

	// CountOverdue returns how many unpaid installments are past due as of
	// the given day. Read-only; used by the overdue scanner.
	CountOverdue(ctx context.Context, asOf Date) (int, error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store bundles every repository the lifecycle controller needs.
type Store interface {
	CustomerStore
	LoanStore
	InstallmentStore
}

// TxStore wraps Store with all-or-nothing transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view. If fn returns an
	// error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
