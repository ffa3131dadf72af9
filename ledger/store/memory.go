// Package store provides an in-memory ledger.TxStore implementation.
//
// Used by tests and local development. The semantics mirror the SQLite
// store exactly: version-checked saves, copy-on-read, snapshot rollback
// for WithTx. Thread-safe.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/loan-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	customers    map[ledger.CustomerID]ledger.Customer
	loans        map[ledger.LoanID]ledger.Loan
	installments map[ledger.LoanID][]ledger.Installment
}

func NewMemory() *Memory {
	return &Memory{
		customers:    make(map[ledger.CustomerID]ledger.Customer),
		loans:        make(map[ledger.LoanID]ledger.Loan),
		installments: make(map[ledger.LoanID][]ledger.Installment),
	}
}

// =============================================================================
// CUSTOMER STORE
// =============================================================================

func (m *Memory) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCustomerLocked(id)
}

func (m *Memory) getCustomerLocked(id ledger.CustomerID) (*ledger.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ledger.ErrCustomerNotFound
	}
	copied := c
	return &copied, nil
}

func (m *Memory) SaveCustomer(_ context.Context, customer *ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCustomerLocked(customer)
}

func (m *Memory) saveCustomerLocked(customer *ledger.Customer) error {
	existing, ok := m.customers[customer.ID]
	if customer.Version == 0 {
		if ok {
			return ledger.ErrVersionConflict
		}
	} else {
		if !ok {
			return ledger.ErrCustomerNotFound
		}
		if existing.Version != customer.Version {
			return ledger.ErrVersionConflict
		}
	}
	customer.Version++
	stored := *customer
	m.customers[customer.ID] = stored
	return nil
}

// =============================================================================
// LOAN STORE
// =============================================================================

func (m *Memory) GetLoan(_ context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLoanLocked(id)
}

func (m *Memory) getLoanLocked(id ledger.LoanID) (*ledger.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, ledger.ErrLoanNotFound
	}
	copied := l
	copied.Installments = nil
	return &copied, nil
}

func (m *Memory) ListLoansByCustomer(_ context.Context, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLoansLocked(customerID, filter)
}

func (m *Memory) listLoansLocked(customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	var result []ledger.Loan
	for _, l := range m.loans {
		if l.CustomerID != customerID {
			continue
		}
		if filter.Paid != nil && l.Paid != *filter.Paid {
			continue
		}
		if filter.NumberOfInstallments != nil && l.NumberOfInstallments != *filter.NumberOfInstallments {
			continue
		}
		if filter.CreatedFrom != nil && l.CreateDate.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && l.CreateDate.After(*filter.CreatedTo) {
			continue
		}
		copied := l
		copied.Installments = m.copyInstallmentsLocked(l.ID)
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreateDate.Equal(result[j].CreateDate) {
			return result[i].CreateDate.Before(result[j].CreateDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveLoan(_ context.Context, loan *ledger.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLoanLocked(loan)
}

func (m *Memory) saveLoanLocked(loan *ledger.Loan) error {
	existing, ok := m.loans[loan.ID]
	if loan.Version == 0 {
		if ok {
			return ledger.ErrVersionConflict
		}
	} else {
		if !ok {
			return ledger.ErrLoanNotFound
		}
		if existing.Version != loan.Version {
			return ledger.ErrVersionConflict
		}
	}
	loan.Version++
	stored := *loan
	stored.Installments = nil // installments live in their own map
	m.loans[loan.ID] = stored
	return nil
}

func (m *Memory) DeleteLoan(_ context.Context, id ledger.LoanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLoanLocked(id)
}

func (m *Memory) deleteLoanLocked(id ledger.LoanID) error {
	if _, ok := m.loans[id]; !ok {
		return ledger.ErrLoanNotFound
	}
	delete(m.loans, id)
	delete(m.installments, id)
	return nil
}

// =============================================================================
// INSTALLMENT STORE
// =============================================================================

func (m *Memory) ListInstallments(_ context.Context, loanID ledger.LoanID) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInstallmentsLocked(loanID)
}

func (m *Memory) listInstallmentsLocked(loanID ledger.LoanID) ([]ledger.Installment, error) {
	result := m.copyInstallmentsLocked(loanID)
	if len(result) == 0 {
		return nil, ledger.ErrNoInstallments
	}
	return result, nil
}

func (m *Memory) copyInstallmentsLocked(loanID ledger.LoanID) []ledger.Installment {
	src := m.installments[loanID]
	result := make([]ledger.Installment, len(src))
	copy(result, src)
	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result
}

func (m *Memory) SaveInstallment(_ context.Context, installment *ledger.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInstallmentLocked(installment)
}

func (m *Memory) saveInstallmentLocked(installment *ledger.Installment) error {
	list := m.installments[installment.LoanID]
	for i := range list {
		if list[i].ID != installment.ID {
			continue
		}
		if list[i].Version != installment.Version {
			return ledger.ErrVersionConflict
		}
		installment.Version++
		list[i] = *installment
		return nil
	}
	if installment.Version != 0 {
		return ledger.ErrNoInstallments
	}
	installment.Version++
	m.installments[installment.LoanID] = append(list, *installment)
	return nil
}

func (m *Memory) SaveInstallments(_ context.Context, installments []ledger.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range installments {
		if err := m.saveInstallmentLocked(&installments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) CountOverdue(_ context.Context, asOf ledger.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countOverdueLocked(asOf), nil
}

func (m *Memory) countOverdueLocked(asOf ledger.Date) int {
	count := 0
	for _, list := range m.installments {
		for _, ins := range list {
			if !ins.Paid && ins.DueDate.Before(asOf) {
				count++
			}
		}
	}
	return count
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore
// =============================================================================

// WithTx executes fn against the store under a single lock. On error the
// pre-transaction state is restored, so fn's writes never become visible.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &memoryTxView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers    map[ledger.CustomerID]ledger.Customer
	loans        map[ledger.LoanID]ledger.Loan
	installments map[ledger.LoanID][]ledger.Installment
}

func (m *Memory) snapshot() memorySnapshot {
	customers := make(map[ledger.CustomerID]ledger.Customer, len(m.customers))
	for k, v := range m.customers {
		customers[k] = v
	}
	loans := make(map[ledger.LoanID]ledger.Loan, len(m.loans))
	for k, v := range m.loans {
		loans[k] = v
	}
	installments := make(map[ledger.LoanID][]ledger.Installment, len(m.installments))
	for k, v := range m.installments {
		installments[k] = append([]ledger.Installment{}, v...)
	}
	return memorySnapshot{customers: customers, loans: loans, installments: installments}
}

func (m *Memory) restore(s memorySnapshot) {
	m.customers = s.customers
	m.loans = s.loans
	m.installments = s.installments
}

// memoryTxView routes Store calls to the locked variants of its parent.
// Only valid inside WithTx, where the parent's lock is held.
type memoryTxView struct {
	parent *Memory
}

func (v *memoryTxView) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return v.parent.getCustomerLocked(id)
}

func (v *memoryTxView) SaveCustomer(_ context.Context, customer *ledger.Customer) error {
	return v.parent.saveCustomerLocked(customer)
}

func (v *memoryTxView) GetLoan(_ context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	return v.parent.getLoanLocked(id)
}

func (v *memoryTxView) ListLoansByCustomer(_ context.Context, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	return v.parent.listLoansLocked(customerID, filter)
}

func (v *memoryTxView) SaveLoan(_ context.Context, loan *ledger.Loan) error {
	return v.parent.saveLoanLocked(loan)
}

func (v *memoryTxView) DeleteLoan(_ context.Context, id ledger.LoanID) error {
	return v.parent.deleteLoanLocked(id)
}

func (v *memoryTxView) ListInstallments(_ context.Context, loanID ledger.LoanID) ([]ledger.Installment, error) {
	return v.parent.listInstallmentsLocked(loanID)
}

func (v *memoryTxView) SaveInstallment(_ context.Context, installment *ledger.Installment) error {
	return v.parent.saveInstallmentLocked(installment)
}

func (v *memoryTxView) SaveInstallments(_ context.Context, installments []ledger.Installment) error {
	for i := range installments {
		if err := v.parent.saveInstallmentLocked(&installments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *memoryTxView) CountOverdue(_ context.Context, asOf ledger.Date) (int, error) {
	return v.parent.countOverdueLocked(asOf), nil
}
