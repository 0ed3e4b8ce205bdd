package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date. The time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	// TransactionRecord is one dated (budget, expense) pair.
	TransactionRecord struct {
		Date    Date
		Budget  decimal.Decimal
		Expense decimal.Decimal
	}

	// Table is the full set of records held by a store. Order is storage order.
	Table []TransactionRecord
)

var (
	ErrZeroDate    = errors.New("date cannot be zero")
	ErrInvalidDate = errors.New("invalid date")
)

// accepted layouts for ParseDate, tried in order
var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date. Timestamps are accepted and
// truncated to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDays returns the date n days after d (before, for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// Equal reports whether both values denote the same calendar date.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(b), `"`)))
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Savings returns budget minus expense for this record.
func (r TransactionRecord) Savings() decimal.Decimal {
	return r.Budget.Sub(r.Expense)
}

// Validate only checks the key. Amounts are not validated here.
func (r TransactionRecord) Validate() error {
	return r.Date.Validate()
}

// Upsert returns a new table without any record dated r.Date, with r appended.
func (t Table) Upsert(r TransactionRecord) Table {
	out := make(Table, 0, len(t)+1)
	for _, existing := range t {
		if existing.Date.Equal(r.Date) {
			continue
		}
		out = append(out, existing)
	}
	return append(out, r)
}

// Find returns the record stored for d, if any.
func (t Table) Find(d Date) (TransactionRecord, bool) {
	for _, r := range t {
		if r.Date.Equal(d) {
			return r, true
		}
	}
	return TransactionRecord{}, false
}

// Since returns the records dated on or after from.
func (t Table) Since(from Date) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if !r.Date.Before(from) {
			out = append(out, r)
		}
	}
	return out
}

// SortedDesc returns a copy ordered newest first.
func (t Table) SortedDesc() Table {
	out := make(Table, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date)
	})
	return out
}

// Head returns at most n leading records.
func (t Table) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	if len(t) <= n {
		return t
	}
	return t[:n]
}
