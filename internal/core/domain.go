package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// AmountScale is the number of decimal places every ledger backend stores.
const AmountScale = 2

// FitsAmountScale reports whether amount is stored exactly at AmountScale.
// Trailing zeros do not count, so 120.500 fits and 99.995 does not.
func FitsAmountScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(AmountScale))
}

type (
	// Date is a calendar date held at UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is a single purchase in the ledger.
	Transaction struct {
		ID         int64           `json:"id"`
		CustomerID int64           `json:"customerId"`
		Amount     decimal.Decimal `json:"amount"`
		Date       Date            `json:"date"`
	}
)

// NewDate creates a Date from year, month and day components.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// AddMonths shifts the date by n calendar months. When the target month is
// shorter, the day is clamped to its last day (Jan 31 + 1 month = Feb 28).
func (d Date) AddMonths(n int) Date {
	total := d.Year()*12 + (d.Month() - 1) + n
	year, month := total/12, total%12+1
	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// MonthsBetween returns the number of whole calendar months from d to end.
// A month is complete only once end's day-of-month reaches d's.
func (d Date) MonthsBetween(end Date) int {
	months := (end.Year()*12 + end.Month()) - (d.Year()*12 + d.Month())
	days := end.Day() - d.Day()
	switch {
	case months > 0 && days < 0:
		months--
	case months < 0 && days > 0:
		months++
	}
	return months
}

// DaysBetween returns the signed number of days from d to end.
func (d Date) DaysBetween(end Date) int {
	return int(end.Time.Sub(d.Time).Hours() / 24)
}

// MonthLabel returns the upper-case English month name used as an
// aggregation key, for example "JANUARY".
func (d Date) MonthLabel() string {
	return strings.ToUpper(d.Time.Month().String())
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
