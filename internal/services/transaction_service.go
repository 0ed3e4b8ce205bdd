package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finadvisor/internal/amqp"
	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
)

// RecentLimit is how many records the overview lists.
const RecentLimit = 5

// ChartDays is the length of the daily savings series.
const ChartDays = 30

// Publisher announces upserts. *amqp.Client satisfies it.
type Publisher interface {
	PublishTransactionUpserted(ctx context.Context, msg *amqp.TransactionUpserted) error
}

// TransactionService orchestrates writes to the store and the optional event publisher
type TransactionService struct {
	store     ledger.Store
	publisher Publisher
	now       func() time.Time
}

// NewTransactionService wires a store and an optional publisher (nil disables events).
func NewTransactionService(store ledger.Store, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Today is the current local calendar date.
func (s *TransactionService) Today() core.Date {
	return core.DateOf(s.now())
}

// RecordTransaction saves a record locally and publishes an upsert event
func (s *TransactionService) RecordTransaction(ctx context.Context, r core.TransactionRecord) error {
	// Store first, it is the source of truth
	if err := s.store.Upsert(ctx, r); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishTransactionUpserted(ctx, amqp.NewTransactionUpserted(r)); err != nil {
		// Don't fail the request, the record is saved locally
		slog.ErrorContext(ctx, "Failed to publish transaction upserted message",
			"date", r.Date.String(), "error", err)
	}
	return nil
}

// Transactions returns every record, newest first.
func (s *TransactionService) Transactions(ctx context.Context) (core.Table, error) {
	table, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return table.SortedDesc(), nil
}

// WindowSummary is the savings over one rolling window.
type WindowSummary struct {
	Window  core.Window
	Start   core.Date
	Savings decimal.Decimal
	Records int
}

// Overview is everything the dashboard shows, computed from one read.
type Overview struct {
	Today   core.Date
	Weekly  WindowSummary
	Monthly WindowSummary
	Recent  core.Table
	Daily   []core.DailySavings
	Empty   bool
}

// Savings sums one window of the stored table.
func (s *TransactionService) Savings(ctx context.Context, w core.Window) (WindowSummary, error) {
	table, err := s.store.GetAll(ctx)
	if err != nil {
		return WindowSummary{}, fmt.Errorf("load transactions: %w", err)
	}
	return summarize(table, w, s.Today()), nil
}

// Overview computes weekly and monthly savings, the recent records and the chart series.
func (s *TransactionService) Overview(ctx context.Context) (Overview, error) {
	table, err := s.store.GetAll(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("load transactions: %w", err)
	}
	today := s.Today()
	return Overview{
		Today:   today,
		Weekly:  summarize(table, core.WeeklyWindow, today),
		Monthly: summarize(table, core.MonthlyWindow, today),
		Recent:  table.SortedDesc().Head(RecentLimit),
		Daily:   core.DailySeries(table, today.AddDays(-(ChartDays - 1)), today),
		Empty:   len(table) == 0,
	}, nil
}

func summarize(t core.Table, w core.Window, today core.Date) WindowSummary {
	records := w.Apply(t, today)
	return WindowSummary{
		Window:  w,
		Start:   w.Start(today),
		Savings: core.CalculateSavings(records),
		Records: len(records),
	}
}

// Close closes the store and publisher when they hold resources
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}

	return nil
}
