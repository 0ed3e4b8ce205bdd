package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func rec(d Date, budget, expense int64) TransactionRecord {
	return TransactionRecord{Date: d, Budget: decimal.NewFromInt(budget), Expense: decimal.NewFromInt(expense)}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2025-01-01", NewDate(2025, 1, 1), true},
		{" 2025-12-31 ", NewDate(2025, 12, 31), true},
		{"2025-03-04 00:00:00", NewDate(2025, 3, 4), true},
		{"2025-03-04T18:30:00Z", NewDate(2025, 3, 4), true},
		{"", Date{}, false},
		{"04/03/2025", Date{}, false},
		{"2025-02-30", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	d := DateOf(time.Date(2025, 6, 1, 23, 59, 0, 0, loc))
	if d.String() != "2025-06-01" {
		t.Fatalf("unexpected date %s", d)
	}
	if d.Hour() != 0 || d.Location() != time.UTC {
		t.Fatalf("expected midnight UTC, got %v", d.Time)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 5, 17))
	if err != nil || string(b) != `"2025-05-17"` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-05-17"`), &d); err != nil || !d.Equal(NewDate(2025, 5, 17)) {
		t.Fatalf("unmarshal: %v err=%v", d, err)
	}
}

func TestRecordValidate(t *testing.T) {
	if err := rec(NewDate(2025, 1, 1), 0, 10).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := rec(Date{}, 1, 1).Validate(); !errors.Is(err, ErrZeroDate) {
		t.Fatalf("expected ErrZeroDate, got %v", err)
	}
	// negative amounts are the caller's concern
	if err := rec(NewDate(2025, 1, 1), -5, -5).Validate(); err != nil {
		t.Fatalf("expected negative amounts to pass, got %v", err)
	}
}

func TestTableUpsert(t *testing.T) {
	d1, d2 := NewDate(2025, 1, 1), NewDate(2025, 1, 2)

	var tbl Table
	tbl = tbl.Upsert(rec(d1, 100000, 40000))
	tbl = tbl.Upsert(rec(d2, 50000, 50000))
	if len(tbl) != 2 {
		t.Fatalf("expected 2 records, got %d", len(tbl))
	}

	before := len(tbl)
	tbl = tbl.Upsert(rec(d1, 200000, 10000))
	if len(tbl) != before {
		t.Fatalf("upsert on existing date changed count: %d -> %d", before, len(tbl))
	}
	got, ok := tbl.Find(d1)
	if !ok || !got.Budget.Equal(decimal.NewFromInt(200000)) || !got.Expense.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("unexpected record for d1: %+v", got)
	}
	count := 0
	for _, r := range tbl {
		if r.Date.Equal(d1) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one record for d1, got %d", count)
	}
}

func TestTableUpsertDoesNotMutateInput(t *testing.T) {
	d := NewDate(2025, 1, 1)
	orig := Table{rec(d, 1, 1)}
	_ = orig.Upsert(rec(d, 2, 2))
	if !orig[0].Budget.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("input table mutated: %+v", orig)
	}
}

func TestTableSinceAndSorted(t *testing.T) {
	tbl := Table{
		rec(NewDate(2025, 1, 3), 3, 0),
		rec(NewDate(2025, 1, 1), 1, 0),
		rec(NewDate(2025, 1, 2), 2, 0),
	}
	since := tbl.Since(NewDate(2025, 1, 2))
	if len(since) != 2 {
		t.Fatalf("expected boundary date to be included, got %d records", len(since))
	}

	sorted := tbl.SortedDesc()
	want := []string{"2025-01-03", "2025-01-02", "2025-01-01"}
	for i, w := range want {
		if sorted[i].Date.String() != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, sorted[i].Date)
		}
	}
	if tbl[0].Date.String() != "2025-01-03" || tbl[1].Date.String() != "2025-01-01" {
		t.Fatalf("SortedDesc reordered the receiver")
	}
	if got := sorted.Head(2); len(got) != 2 {
		t.Fatalf("expected head of 2, got %d", len(got))
	}
	if got := sorted.Head(10); len(got) != 3 {
		t.Fatalf("expected head capped at 3, got %d", len(got))
	}
}
