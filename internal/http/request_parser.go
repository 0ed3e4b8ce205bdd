// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of request data.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
)

// FormError is a validation problem with a submitted field. Its message is
// safe to show to the user.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string {
	return e.Field + ": " + e.Message
}

// TransactionForm holds the raw values of the entry form so they can be
// echoed back when validation fails.
type TransactionForm struct {
	Date    string
	Budget  string
	Expense string
}

// ParseTransactionForm reads date, budget and expense from form values and
// validates them. Amounts must be numbers and not negative.
func ParseTransactionForm(form url.Values) (TransactionForm, core.TransactionRecord, error) {
	raw := TransactionForm{
		Date:    sanitizeInput(form.Get("date")),
		Budget:  sanitizeInput(form.Get("budget")),
		Expense: sanitizeInput(form.Get("expense")),
	}

	date, err := core.ParseDate(raw.Date)
	if err != nil {
		return raw, core.TransactionRecord{}, &FormError{Field: "date", Message: "enter a date as YYYY-MM-DD"}
	}

	budget, err := parseNonNegative("budget", raw.Budget)
	if err != nil {
		return raw, core.TransactionRecord{}, err
	}
	expense, err := parseNonNegative("expense", raw.Expense)
	if err != nil {
		return raw, core.TransactionRecord{}, err
	}

	rec := core.TransactionRecord{Date: date, Budget: budget, Expense: expense}
	if err := rec.Validate(); err != nil {
		return raw, core.TransactionRecord{}, &FormError{Field: "date", Message: err.Error()}
	}
	return raw, rec, nil
}

func parseNonNegative(field, s string) (d decimal.Decimal, err error) {
	d, err = core.ParseAmount(s)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return d, &FormError{Field: field, Message: "must be a number"}
		}
		return d, fmt.Errorf("parse %s: %w", field, err)
	}
	if d.IsNegative() {
		return d, &FormError{Field: field, Message: "cannot be negative"}
	}
	return d, nil
}

// ParseWindowParam resolves the window query parameter. Empty means weekly.
func ParseWindowParam(query url.Values) (core.Window, error) {
	name := strings.ToLower(strings.TrimSpace(query.Get("window")))
	if name == "" {
		return core.WeeklyWindow, nil
	}
	w, ok := core.WindowByName(name)
	if !ok {
		return core.Window{}, &FormError{Field: "window", Message: "must be weekly or monthly"}
	}
	return w, nil
}
