package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
	applog "finadvisor/internal/log"
	"finadvisor/internal/services"
)

// dashboardView is the data behind dashboard.html. Amounts are preformatted.
type dashboardView struct {
	Today      string
	Currency   string
	Saved      string
	Error      string
	Form       TransactionForm
	Windows    []windowView
	Chart      []barView
	ChartDays  int
	ChartStart string
	Recent     []rowView
	Empty      bool
}

type windowView struct {
	Name       string
	Label      string
	Amount     string
	Negative   bool
	Records    int
	Start      string
	Suggestion string
}

type barView struct {
	Date     string
	Amount   string
	Height   int
	Negative bool
}

type rowView struct {
	Date     string
	Budget   string
	Expense  string
	Savings  string
	Negative bool
}

// defaultForm is what the entry form shows on a fresh load.
func defaultForm(today core.Date) TransactionForm {
	return TransactionForm{Date: today.String(), Budget: "100000", Expense: "0"}
}

func newWindowView(ws services.WindowSummary, suggestion string) windowView {
	return windowView{
		Name:       ws.Window.Name,
		Label:      strings.ToUpper(ws.Window.Name[:1]) + ws.Window.Name[1:],
		Amount:     core.FormatCurrency(ws.Savings),
		Negative:   ws.Savings.IsNegative(),
		Records:    ws.Records,
		Start:      ws.Start.String(),
		Suggestion: suggestion,
	}
}

// chartBars scales daily savings to bar heights in steps of 5 percent of the
// largest absolute value. Non-zero days get at least one step.
func chartBars(series []core.DailySavings) []barView {
	max := decimal.Zero
	for _, d := range series {
		if a := d.Savings.Abs(); a.GreaterThan(max) {
			max = a
		}
	}

	bars := make([]barView, 0, len(series))
	for _, d := range series {
		height := 0
		if max.IsPositive() && !d.Savings.IsZero() {
			pct := d.Savings.Abs().Mul(decimal.NewFromInt(20)).Div(max).Round(0).IntPart()
			height = int(pct) * 5
			if height < 5 {
				height = 5
			}
		}
		bars = append(bars, barView{
			Date:     d.Date.String(),
			Amount:   core.FormatCurrency(d.Savings),
			Height:   height,
			Negative: d.Savings.IsNegative(),
		})
	}
	return bars
}

func recentRows(t core.Table) []rowView {
	rows := make([]rowView, 0, len(t))
	for _, r := range t {
		rows = append(rows, rowView{
			Date:     r.Date.String(),
			Budget:   core.FormatCurrency(r.Budget),
			Expense:  core.FormatCurrency(r.Expense),
			Savings:  core.FormatCurrency(r.Savings()),
			Negative: r.Savings().IsNegative(),
		})
	}
	return rows
}

// transactionJSON is the API shape of a record. Amounts are decimal strings.
type transactionJSON struct {
	Date    core.Date       `json:"date"`
	Budget  decimal.Decimal `json:"budget"`
	Expense decimal.Decimal `json:"expense"`
	Savings decimal.Decimal `json:"savings"`
}

func toTransactionJSON(t core.Table) []transactionJSON {
	out := make([]transactionJSON, 0, len(t))
	for _, r := range t {
		out = append(out, transactionJSON{Date: r.Date, Budget: r.Budget, Expense: r.Expense, Savings: r.Savings()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// logError reports a failed operation through the request-scoped logger.
func logError(ctx context.Context, msg string, err error, op string, fields applog.LogFields) {
	if fields == nil {
		fields = applog.NewFields()
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, msg, err, applog.ComponentHTTP, op, fields)
}
