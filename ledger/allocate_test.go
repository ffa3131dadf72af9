package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/ledger"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// threeInstallments returns a schedule of 350.00 installments around a
// frozen "today" of 2025-06-15 (payment window threshold: 2025-09-01):
//
//	[0] due 2025-06-05  10 days overdue  -> effective 353.50
//	[1] due 2025-07-01  16 days early    -> effective 344.40
//	[2] due 2025-08-01  47 days early    -> effective 333.55
func threeInstallments() []ledger.Installment {
	return []ledger.Installment{
		{ID: "i-1", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.June, 5)},
		{ID: "i-2", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.July, 1)},
		{ID: "i-3", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.August, 1)},
	}
}

var allocToday = ledger.NewDate(2025, time.June, 15)

// =============================================================================
// ALLOCATION WALK TESTS
// =============================================================================

func TestAllocatePayment_CoversTwo_StopsAtShortfall(t *testing.T) {
	// GIVEN: Three payable installments priced 353.50 / 344.40 / 333.55
	// WHEN: Paying 700.00
	// THEN: The first two are paid (697.90); the remainder 2.10 cannot
	//       cover the third, so it stays unpaid with no partial applied

	installments := threeInstallments()

	result, paid, err := ledger.AllocatePayment(installments, dec("700"), allocToday)

	require.NoError(t, err)
	assert.Equal(t, 2, result.InstallmentsPaid)
	assertDecimalEqual(t, "697.90", result.TotalPaid)
	assert.False(t, result.LoanFullyPaid)

	require.Len(t, paid, 2)
	assert.True(t, installments[0].Paid)
	assert.True(t, installments[1].Paid)
	assert.False(t, installments[2].Paid)
	assert.True(t, installments[2].PaidAmount.IsZero(), "no partial payment on the shortfall installment")
}

func TestAllocatePayment_ExactCover_PaysAll(t *testing.T) {
	// GIVEN: Three payable installments totaling 1031.45 effective
	// WHEN: Paying exactly that sum
	// THEN: All are paid and the loan is fully paid

	installments := threeInstallments()

	result, paid, err := ledger.AllocatePayment(installments, dec("1031.45"), allocToday)

	require.NoError(t, err)
	assert.Equal(t, 3, result.InstallmentsPaid)
	assertDecimalEqual(t, "1031.45", result.TotalPaid)
	assert.True(t, result.LoanFullyPaid)
	assert.Len(t, paid, 3)
}

func TestAllocatePayment_NoLeapfrogPastShortfall(t *testing.T) {
	// GIVEN: The earliest installment costs 353.50 but a later one only 333.55
	// WHEN: Paying 340.00
	// THEN: The walk stops at the first shortfall; the cheaper later
	//       installment is NOT paid, and the whole payment is rejected

	installments := threeInstallments()

	_, _, err := ledger.AllocatePayment(installments, dec("340"), allocToday)

	require.ErrorIs(t, err, ledger.ErrPaymentInsufficient)
	for _, ins := range installments {
		assert.False(t, ins.Paid)
	}
}

func TestAllocatePayment_ZeroPaid_ReturnsError(t *testing.T) {
	// GIVEN: Payable installments
	// WHEN: Paying less than the first effective amount
	// THEN: A PaymentInsufficientError identifying the loan, nothing mutated

	installments := threeInstallments()

	_, _, err := ledger.AllocatePayment(installments, dec("200"), allocToday)

	require.ErrorIs(t, err, ledger.ErrPaymentInsufficient)
	var perr *ledger.PaymentInsufficientError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ledger.LoanID("loan-1"), perr.LoanID)
	assert.True(t, dec("200").Equal(perr.Amount))
}

// =============================================================================
// PAYMENT WINDOW TESTS
// =============================================================================

func TestAllocatePayment_SkipsInstallmentsBeyondWindow(t *testing.T) {
	// GIVEN: An installment due ON the three-month threshold (2025-09-01)
	//        and one due the day before
	// WHEN: Paying enough for both
	// THEN: Only the installment strictly before the threshold is payable

	installments := []ledger.Installment{
		{ID: "i-1", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.August, 31)},
		{ID: "i-2", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.September, 1)},
	}

	result, _, err := ledger.AllocatePayment(installments, dec("10000"), allocToday)

	require.NoError(t, err)
	assert.Equal(t, 1, result.InstallmentsPaid)
	assert.True(t, installments[0].Paid)
	assert.False(t, installments[1].Paid)
	assert.False(t, result.LoanFullyPaid)
}

func TestAllocatePayment_OnlyFutureInstallments_PaymentRejected(t *testing.T) {
	// GIVEN: Every installment lies beyond the payment window
	// WHEN: Paying any amount
	// THEN: Nothing is payable and the payment is rejected

	installments := []ledger.Installment{
		{ID: "i-1", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.October, 1)},
		{ID: "i-2", LoanID: "loan-1", Amount: dec("350"), DueDate: date(2025, time.November, 1)},
	}

	_, _, err := ledger.AllocatePayment(installments, dec("10000"), allocToday)

	require.ErrorIs(t, err, ledger.ErrPaymentInsufficient)
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestAllocatePayment_SkipsAlreadyPaid(t *testing.T) {
	// GIVEN: The first installment was paid in an earlier transaction
	// WHEN: Paying enough for the next one
	// THEN: Allocation starts at the first unpaid installment

	installments := threeInstallments()
	installments[0].Paid = true
	installments[0].PaidAmount = dec("353.50")

	result, paid, err := ledger.AllocatePayment(installments, dec("344.40"), allocToday)

	require.NoError(t, err)
	assert.Equal(t, 1, result.InstallmentsPaid)
	require.Len(t, paid, 1)
	assert.Equal(t, ledger.InstallmentID("i-2"), paid[0].ID)
}

func TestAllocatePayment_RecordsEffectiveAmountAndDate(t *testing.T) {
	// GIVEN: An overdue installment priced at 353.50
	// WHEN: Paying it
	// THEN: PaidAmount is the effective (penalized) amount and the payment
	//       date is today

	installments := threeInstallments()[:1]

	_, paid, err := ledger.AllocatePayment(installments, dec("353.50"), allocToday)

	require.NoError(t, err)
	require.Len(t, paid, 1)
	assertDecimalEqual(t, "353.50", paid[0].PaidAmount)
	require.NotNil(t, paid[0].PaymentDate)
	assert.True(t, paid[0].PaymentDate.Equal(allocToday))
}

func TestAllocatePayment_ExcessRemainderIsNotApplied(t *testing.T) {
	// GIVEN: One payable installment at 353.50
	// WHEN: Paying 500.00
	// THEN: Only 353.50 is applied; the surplus is reported back via TotalPaid

	installments := threeInstallments()[:1]

	result, _, err := ledger.AllocatePayment(installments, dec("500"), allocToday)

	require.NoError(t, err)
	assert.Equal(t, 1, result.InstallmentsPaid)
	assertDecimalEqual(t, "353.50", result.TotalPaid)
	assert.True(t, dec("500").Sub(result.TotalPaid).Equal(decimal.RequireFromString("146.50")))
}
