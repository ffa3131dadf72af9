package ledger

import (
	"time"
)

// =============================================================================
// DATE - Calendar-day precision time (all loan dates are whole days)
// =============================================================================

// Date is a calendar day in UTC. Due dates, payment dates and the pricing
// function all operate at day granularity; anything finer is noise here.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// MonthStart returns the first calendar day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.t.Year(), d.t.Month(), 1)
}

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string {
	return d.t.Format("2006-01-02")
}

// DaysBetween returns the signed number of days from one date to another.
// Positive when to is after from.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// FirstDueDate returns the due date of the first installment of a schedule
// built today: the first calendar day of the following month.
func FirstDueDate(today Date) Date {
	return today.AddMonths(1).MonthStart()
}

// PaymentWindowThreshold returns the horizon beyond which installments are
// not yet eligible for payment: the first calendar day of the month three
// months from today. An installment is payable only if its due date is
// strictly before this threshold.
func PaymentWindowThreshold(today Date) Date {
	return today.AddMonths(3).MonthStart()
}
