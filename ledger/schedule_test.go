package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/ledger"
)

// =============================================================================
// INSTALLMENT AMOUNT TESTS
// =============================================================================

func TestInstallmentAmount_FlatAddOnInterest(t *testing.T) {
	// GIVEN: 1000 principal at 3% over 12 installments
	// WHEN: Computing the per-installment amount
	// THEN: 1000 * 1.03 / 12 = 85.8333... rounds to 85.83

	got := ledger.InstallmentAmount(dec("1000"), dec("0.03"), 12)

	assertDecimalEqual(t, "85.83", got)
}

func TestInstallmentAmount_ExactDivision(t *testing.T) {
	// GIVEN: 1200 principal at 10% over 6 installments
	// WHEN: Computing the per-installment amount
	// THEN: 1200 * 1.1 / 6 = 220.00 exactly

	got := ledger.InstallmentAmount(dec("1200"), dec("0.1"), 6)

	assertDecimalEqual(t, "220.00", got)
}

func TestInstallmentAmount_RoundsHalfUp(t *testing.T) {
	// GIVEN: An amount whose division lands exactly on a half cent
	// WHEN: 100.89 * 1.0 / 6 = 16.815
	// THEN: Ties round up to 16.82

	got := ledger.InstallmentAmount(dec("100.89"), dec("0"), 6)

	assertDecimalEqual(t, "16.82", got)
}

// =============================================================================
// SCHEDULE CONSTRUCTION TESTS
// =============================================================================

func TestBuildSchedule_FirstDueDateIsNextMonthStart(t *testing.T) {
	// GIVEN: A loan created mid-month
	// WHEN: Building the schedule
	// THEN: The first installment is due on the 1st of the following month

	today := date(2025, time.June, 15)
	schedule := ledger.BuildSchedule("loan-1", dec("85.83"), 6, today)

	require.Len(t, schedule, 6)
	assert.True(t, schedule[0].DueDate.Equal(date(2025, time.July, 1)))
}

func TestBuildSchedule_MonthlyCadenceAcrossYearEnd(t *testing.T) {
	// GIVEN: A loan created in November
	// WHEN: Building a 6-installment schedule
	// THEN: Due dates advance one month at a time, crossing into next year

	today := date(2025, time.November, 20)
	schedule := ledger.BuildSchedule("loan-1", dec("220"), 6, today)

	require.Len(t, schedule, 6)
	expected := []ledger.Date{
		date(2025, time.December, 1),
		date(2026, time.January, 1),
		date(2026, time.February, 1),
		date(2026, time.March, 1),
		date(2026, time.April, 1),
		date(2026, time.May, 1),
	}
	for i, ins := range schedule {
		assert.True(t, ins.DueDate.Equal(expected[i]), "installment %d due %s, want %s", i, ins.DueDate, expected[i])
	}
}

func TestBuildSchedule_AllInstallmentsUnpaidWithEqualAmounts(t *testing.T) {
	// GIVEN: Any schedule
	// WHEN: Built
	// THEN: Every installment carries the same amount, no payment state

	today := date(2025, time.June, 15)
	schedule := ledger.BuildSchedule("loan-1", dec("85.83"), 12, today)

	require.Len(t, schedule, 12)
	for _, ins := range schedule {
		assert.Equal(t, ledger.LoanID("loan-1"), ins.LoanID)
		assertDecimalEqual(t, "85.83", ins.Amount)
		assert.False(t, ins.Paid)
		assert.Nil(t, ins.PaymentDate)
		assert.NotEmpty(t, ins.ID)
	}
}

func TestBuildSchedule_OnFirstOfMonth(t *testing.T) {
	// GIVEN: A loan created on the 1st
	// WHEN: Building the schedule
	// THEN: The first due date is still the 1st of the NEXT month

	today := date(2025, time.June, 1)
	schedule := ledger.BuildSchedule("loan-1", dec("220"), 6, today)

	require.NotEmpty(t, schedule)
	assert.True(t, schedule[0].DueDate.Equal(date(2025, time.July, 1)))
}
