package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/ledger"
	"github.com/warp/loan-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testCustomer(id string) *ledger.Customer {
	return &ledger.Customer{
		ID:          ledger.CustomerID(id),
		Name:        "Charlie",
		Surname:     "Customer",
		CreditLimit: dec("10000"),
	}
}

func testLoan(id, customerID string, createDate ledger.Date) *ledger.Loan {
	return &ledger.Loan{
		ID:                   ledger.LoanID(id),
		CustomerID:           ledger.CustomerID(customerID),
		LoanAmount:           dec("1000"),
		NumberOfInstallments: 6,
		CreateDate:           createDate,
	}
}

// =============================================================================
// VERSIONED SAVE TESTS
// =============================================================================

func TestMemory_SaveCustomer_InsertBumpsVersion(t *testing.T) {
	// GIVEN: A fresh customer at version 0
	// WHEN: Saving it
	// THEN: It is stored at version 1

	m := store.NewMemory()
	ctx := context.Background()

	c := testCustomer("c-1")
	require.NoError(t, m.SaveCustomer(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	got, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestMemory_SaveCustomer_StaleVersionConflicts(t *testing.T) {
	// GIVEN: Two readers holding the same version of a customer
	// WHEN: Both write
	// THEN: The second write fails with a version conflict

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveCustomer(ctx, testCustomer("c-1")))

	first, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	second, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)

	first.AddUsedCredit(dec("100"))
	require.NoError(t, m.SaveCustomer(ctx, first))

	second.AddUsedCredit(dec("200"))
	err = m.SaveCustomer(ctx, second)
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)
}

func TestMemory_SaveCustomer_DuplicateInsertConflicts(t *testing.T) {
	// GIVEN: A customer already stored
	// WHEN: Inserting another version-0 record with the same ID
	// THEN: Version conflict

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveCustomer(ctx, testCustomer("c-1")))

	err := m.SaveCustomer(ctx, testCustomer("c-1"))
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)
}

func TestMemory_GetCustomer_CopyOnRead(t *testing.T) {
	// GIVEN: A stored customer
	// WHEN: Mutating the struct returned by a read
	// THEN: The stored record is unaffected

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveCustomer(ctx, testCustomer("c-1")))

	got, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	got.AddUsedCredit(dec("9999"))

	again, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, again.UsedCreditLimit.IsZero())
}

// =============================================================================
// LOAN QUERY TESTS
// =============================================================================

func TestMemory_ListLoansByCustomer_FiltersAndOrders(t *testing.T) {
	// GIVEN: Three loans with mixed paid state and terms
	// WHEN: Listing with filters
	// THEN: Results honor the filter and are ordered by create date

	m := store.NewMemory()
	ctx := context.Background()

	jan := ledger.NewDate(2025, time.January, 10)
	feb := ledger.NewDate(2025, time.February, 10)

	l1 := testLoan("loan-b", "c-1", feb)
	l2 := testLoan("loan-a", "c-1", jan)
	l3 := testLoan("loan-c", "c-1", jan)
	l3.Paid = true
	l3.NumberOfInstallments = 12

	require.NoError(t, m.SaveLoan(ctx, l1))
	require.NoError(t, m.SaveLoan(ctx, l2))
	require.NoError(t, m.SaveLoan(ctx, l3))

	all, err := m.ListLoansByCustomer(ctx, "c-1", ledger.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.LoanID("loan-a"), all[0].ID)
	assert.Equal(t, ledger.LoanID("loan-c"), all[1].ID)
	assert.Equal(t, ledger.LoanID("loan-b"), all[2].ID)

	paid := true
	onlyPaid, err := m.ListLoansByCustomer(ctx, "c-1", ledger.LoanFilter{Paid: &paid})
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)
	assert.Equal(t, ledger.LoanID("loan-c"), onlyPaid[0].ID)

	twelve := 12
	byTerm, err := m.ListLoansByCustomer(ctx, "c-1", ledger.LoanFilter{NumberOfInstallments: &twelve})
	require.NoError(t, err)
	require.Len(t, byTerm, 1)
	assert.Equal(t, ledger.LoanID("loan-c"), byTerm[0].ID)
}

func TestMemory_DeleteLoan_RemovesInstallments(t *testing.T) {
	// GIVEN: A loan with a schedule
	// WHEN: Deleting the loan
	// THEN: Its installments are gone too

	m := store.NewMemory()
	ctx := context.Background()

	today := ledger.NewDate(2025, time.June, 15)
	loan := testLoan("loan-1", "c-1", today)
	require.NoError(t, m.SaveLoan(ctx, loan))

	schedule := ledger.BuildSchedule(loan.ID, dec("220"), 6, today)
	require.NoError(t, m.SaveInstallments(ctx, schedule))

	require.NoError(t, m.DeleteLoan(ctx, loan.ID))

	_, err := m.GetLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, ledger.ErrLoanNotFound)
	_, err = m.ListInstallments(ctx, loan.ID)
	assert.ErrorIs(t, err, ledger.ErrNoInstallments)
}

func TestMemory_ListInstallments_SortedByDueDate(t *testing.T) {
	// GIVEN: Installments saved out of order
	// WHEN: Listing them
	// THEN: They come back ascending by due date

	m := store.NewMemory()
	ctx := context.Background()

	late := ledger.Installment{ID: "i-2", LoanID: "loan-1", Amount: dec("220"), DueDate: ledger.NewDate(2025, time.August, 1)}
	early := ledger.Installment{ID: "i-1", LoanID: "loan-1", Amount: dec("220"), DueDate: ledger.NewDate(2025, time.July, 1)}
	require.NoError(t, m.SaveInstallment(ctx, &late))
	require.NoError(t, m.SaveInstallment(ctx, &early))

	got, err := m.ListInstallments(ctx, "loan-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ledger.InstallmentID("i-1"), got[0].ID)
	assert.Equal(t, ledger.InstallmentID("i-2"), got[1].ID)
}

func TestMemory_CountOverdue(t *testing.T) {
	// GIVEN: One overdue unpaid, one future unpaid, one overdue but paid
	// WHEN: Counting overdue installments as of today
	// THEN: Only the overdue unpaid one counts

	m := store.NewMemory()
	ctx := context.Background()
	today := ledger.NewDate(2025, time.June, 15)

	require.NoError(t, m.SaveInstallments(ctx, []ledger.Installment{
		{ID: "i-1", LoanID: "loan-1", Amount: dec("220"), DueDate: ledger.NewDate(2025, time.June, 1)},
		{ID: "i-2", LoanID: "loan-1", Amount: dec("220"), DueDate: ledger.NewDate(2025, time.July, 1)},
		{ID: "i-3", LoanID: "loan-2", Amount: dec("220"), DueDate: ledger.NewDate(2025, time.May, 1), Paid: true},
	}))

	count, err := m.CountOverdue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A committed customer
	// WHEN: A transaction mutates it and then fails
	// THEN: The mutation is rolled back

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveCustomer(ctx, testCustomer("c-1")))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s ledger.Store) error {
		c, err := s.GetCustomer(ctx, "c-1")
		if err != nil {
			return err
		}
		c.AddUsedCredit(dec("500"))
		if err := s.SaveCustomer(ctx, c); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, got.UsedCreditLimit.IsZero())
	assert.Equal(t, int64(1), got.Version)
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	// GIVEN: A committed customer
	// WHEN: A transaction mutates it and succeeds
	// THEN: The mutation is visible afterwards

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveCustomer(ctx, testCustomer("c-1")))

	err := m.WithTx(ctx, func(s ledger.Store) error {
		c, err := s.GetCustomer(ctx, "c-1")
		if err != nil {
			return err
		}
		c.AddUsedCredit(dec("500"))
		return s.SaveCustomer(ctx, c)
	})
	require.NoError(t, err)

	got, err := m.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(got.UsedCreditLimit))
	assert.Equal(t, int64(2), got.Version)
}
