package http

import (
	"errors"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
)

func TestParseTransactionForm(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantField string // empty means valid
		budget    int64
		expense   int64
	}{
		{
			name:    "valid",
			form:    url.Values{"date": {"2025-03-14"}, "budget": {"100000"}, "expense": {"25000"}},
			budget:  100000,
			expense: 25000,
		},
		{
			name:    "whitespace and exponent",
			form:    url.Values{"date": {" 2025-03-14 "}, "budget": {"1e5"}, "expense": {" 0 "}},
			budget:  100000,
			expense: 0,
		},
		{
			name:      "bad date",
			form:      url.Values{"date": {"14/03/2025"}, "budget": {"1"}, "expense": {"1"}},
			wantField: "date",
		},
		{
			name:      "missing budget",
			form:      url.Values{"date": {"2025-03-14"}, "expense": {"1"}},
			wantField: "budget",
		},
		{
			name:      "negative budget",
			form:      url.Values{"date": {"2025-03-14"}, "budget": {"-1"}, "expense": {"1"}},
			wantField: "budget",
		},
		{
			name:      "non-numeric expense",
			form:      url.Values{"date": {"2025-03-14"}, "budget": {"1"}, "expense": {"lots"}},
			wantField: "expense",
		},
		{
			name:      "control characters are stripped before parsing",
			form:      url.Values{"date": {"2025-03-14\x00"}, "budget": {"1\x07"}, "expense": {"-0.5"}},
			wantField: "expense",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, rec, err := ParseTransactionForm(tt.form)

			if tt.wantField != "" {
				var fe *FormError
				if !errors.As(err, &fe) {
					t.Fatalf("expected FormError, got %v", err)
				}
				if fe.Field != tt.wantField {
					t.Fatalf("Field = %q, want %q", fe.Field, tt.wantField)
				}
				if raw.Date == "" && tt.form.Get("date") != "" {
					t.Fatal("raw values should be echoed back")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !rec.Date.Equal(core.NewDate(2025, 3, 14)) {
				t.Errorf("Date = %s", rec.Date)
			}
			if !rec.Budget.Equal(decimal.NewFromInt(tt.budget)) || !rec.Expense.Equal(decimal.NewFromInt(tt.expense)) {
				t.Errorf("amounts = %s / %s", rec.Budget, rec.Expense)
			}
		})
	}
}

func TestParseWindowParam(t *testing.T) {
	tests := []struct {
		query   string
		want    core.Window
		wantErr bool
	}{
		{"", core.WeeklyWindow, false},
		{"window=weekly", core.WeeklyWindow, false},
		{"window=MONTHLY", core.MonthlyWindow, false},
		{"window=yearly", core.Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseWindowParam(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChartBars(t *testing.T) {
	d := core.NewDate(2025, 1, 1)
	series := []core.DailySavings{
		{Date: d, Savings: decimal.NewFromInt(100)},
		{Date: d.AddDays(1), Savings: decimal.NewFromInt(-50)},
		{Date: d.AddDays(2), Savings: decimal.Zero},
		{Date: d.AddDays(3), Savings: decimal.NewFromInt(1)},
	}
	bars := chartBars(series)
	want := []int{100, 50, 0, 5}
	for i, b := range bars {
		if b.Height != want[i] {
			t.Errorf("bar %d height = %d, want %d", i, b.Height, want[i])
		}
	}
	if !bars[1].Negative || bars[0].Negative {
		t.Error("sign not carried to bars")
	}
	if got := chartBars([]core.DailySavings{{Date: d}}); got[0].Height != 0 {
		t.Errorf("all-zero series should be flat, got %d", got[0].Height)
	}
}
