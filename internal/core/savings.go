package core

import "github.com/shopspring/decimal"

// Window is a rolling period ending today, used to pre-filter records
// before aggregation.
type Window struct {
	Name string
	Days int
}

var (
	WeeklyWindow  = Window{Name: "weekly", Days: 7}
	MonthlyWindow = Window{Name: "monthly", Days: 30}
)

// Start returns the first date included in the window ending on today.
func (w Window) Start(today Date) Date {
	return today.AddDays(-w.Days)
}

// Apply returns the records of t that fall inside the window.
func (w Window) Apply(t Table, today Date) Table {
	return t.Since(w.Start(today))
}

// WindowByName resolves "weekly" or "monthly".
func WindowByName(name string) (Window, bool) {
	switch name {
	case WeeklyWindow.Name:
		return WeeklyWindow, true
	case MonthlyWindow.Name:
		return MonthlyWindow, true
	default:
		return Window{}, false
	}
}

// CalculateSavings sums budgets and expenses across records and returns
// their difference. An empty slice yields zero.
func CalculateSavings(records []TransactionRecord) decimal.Decimal {
	budget := decimal.Zero
	expense := decimal.Zero
	for _, r := range records {
		budget = budget.Add(r.Budget)
		expense = expense.Add(r.Expense)
	}
	return budget.Sub(expense)
}

// DailySavings is the savings figure for a single day.
type DailySavings struct {
	Date    Date
	Savings decimal.Decimal
}

// DailySeries returns one entry per day from start to end inclusive.
// Days without a record have zero savings.
func DailySeries(t Table, start, end Date) []DailySavings {
	var out []DailySavings
	for d := start; !end.Before(d); d = d.AddDays(1) {
		s := decimal.Zero
		if r, ok := t.Find(d); ok {
			s = r.Savings()
		}
		out = append(out, DailySavings{Date: d, Savings: s})
	}
	return out
}
