package ledger

import (
	"fmt"
	"strings"

	"finadvisor/internal/core"
)

// Header locates the required columns by name, so column order in the
// durable table is free.
type Header struct {
	date, budget, expense int
}

// ParseHeader resolves column positions from a header row.
func ParseHeader(row []string) (Header, error) {
	h := Header{date: -1, budget: -1, expense: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "date":
			h.date = i
		case "budget":
			h.budget = i
		case "expense":
			h.expense = i
		}
	}
	var missing []string
	if h.date == -1 {
		missing = append(missing, "date")
	}
	if h.budget == -1 {
		missing = append(missing, "budget")
	}
	if h.expense == -1 {
		missing = append(missing, "expense")
	}
	if len(missing) > 0 {
		return Header{}, fmt.Errorf("%w: missing column %s; got header=%v", ErrMalformedTable, strings.Join(missing, ","), row)
	}
	return h, nil
}

// ParseRow converts one data row. line is used in error messages only.
func (h Header) ParseRow(row []string, line int) (core.TransactionRecord, error) {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	d, err := core.ParseDate(get(h.date))
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, line, err)
	}
	budget, err := core.ParseAmount(get(h.budget))
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("%w: line %d: budget: %v", ErrMalformedTable, line, err)
	}
	expense, err := core.ParseAmount(get(h.expense))
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("%w: line %d: expense: %v", ErrMalformedTable, line, err)
	}
	return core.TransactionRecord{Date: d, Budget: budget, Expense: expense}, nil
}

// FormatRow renders a record in Columns order.
func FormatRow(r core.TransactionRecord) []string {
	return []string{r.Date.String(), r.Budget.String(), r.Expense.String()}
}

// isBlank reports whether every cell of row is empty.
func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseRows converts a header row plus data rows into a table. Blank rows are skipped.
// No rows at all, or only a header, is an empty table.
func ParseRows(rows [][]string) (core.Table, error) {
	if len(rows) == 0 {
		return core.Table{}, nil
	}
	h, err := ParseHeader(rows[0])
	if err != nil {
		return nil, err
	}
	table := make(core.Table, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		r, err := h.ParseRow(row, i+2)
		if err != nil {
			return nil, err
		}
		table = append(table, r)
	}
	return table, nil
}
