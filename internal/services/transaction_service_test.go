package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finadvisor/internal/amqp"
	"finadvisor/internal/core"
	"finadvisor/internal/ledger/memory"
)

type fakePublisher struct {
	published []*amqp.TransactionUpserted
	err       error
	closed    bool
}

func (f *fakePublisher) PublishTransactionUpserted(_ context.Context, msg *amqp.TransactionUpserted) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Upsert(context.Context, core.TransactionRecord) error {
	return errors.New("disk full")
}

func (failingStore) GetAll(context.Context) (core.Table, error) {
	return nil, errors.New("disk gone")
}

func rec(d core.Date, budget, expense int64) core.TransactionRecord {
	return core.TransactionRecord{Date: d, Budget: decimal.NewFromInt(budget), Expense: decimal.NewFromInt(expense)}
}

func fixedService(store *memory.Store, pub Publisher, today core.Date) *TransactionService {
	s := NewTransactionService(store, pub)
	s.now = func() time.Time { return today.Add(15 * time.Hour) }
	return s
}

func TestRecordTransaction_PublishesAfterSave(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	s := NewTransactionService(store, pub)

	d := core.NewDate(2025, 1, 1)
	if err := s.RecordTransaction(context.Background(), rec(d, 100000, 40000)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(pub.published) != 1 || !pub.published[0].Date.Equal(d) {
		t.Fatalf("unexpected published messages %+v", pub.published)
	}
	table, _ := store.GetAll(context.Background())
	if len(table) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(table))
	}
}

func TestRecordTransaction_PublishFailureIsNotFatal(t *testing.T) {
	store := memory.New()
	s := NewTransactionService(store, &fakePublisher{err: errors.New("broker down")})

	if err := s.RecordTransaction(context.Background(), rec(core.NewDate(2025, 1, 1), 1, 1)); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	table, _ := store.GetAll(context.Background())
	if len(table) != 1 {
		t.Fatal("record was not saved")
	}
}

func TestRecordTransaction_StoreFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	s := NewTransactionService(failingStore{memory.New()}, pub)

	err := s.RecordTransaction(context.Background(), rec(core.NewDate(2025, 1, 1), 1, 1))
	if err == nil {
		t.Fatal("expected store error")
	}
	if len(pub.published) != 0 {
		t.Fatal("nothing should be published when the store fails")
	}
}

func TestRecordTransaction_WithoutPublisher(t *testing.T) {
	s := NewTransactionService(memory.New(), nil)
	if err := s.RecordTransaction(context.Background(), rec(core.NewDate(2025, 1, 1), 1, 1)); err != nil {
		t.Fatal(err)
	}
}

func TestTransactions_NewestFirst(t *testing.T) {
	store := memory.New(
		rec(core.NewDate(2025, 1, 2), 1, 0),
		rec(core.NewDate(2025, 1, 5), 1, 0),
		rec(core.NewDate(2025, 1, 1), 1, 0),
	)
	table, err := NewTransactionService(store, nil).Transactions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-01-05", "2025-01-02", "2025-01-01"}
	for i, w := range want {
		if table[i].Date.String() != w {
			t.Fatalf("position %d: got %s want %s", i, table[i].Date, w)
		}
	}
}

func TestOverview(t *testing.T) {
	today := core.NewDate(2025, 3, 31)
	store := memory.New(
		rec(today, 100000, 40000),            // both windows
		rec(today.AddDays(-7), 50000, 20000), // weekly boundary, inclusive
		rec(today.AddDays(-8), 10000, 0),     // monthly only
		rec(today.AddDays(-30), 5000, 0),     // monthly boundary, inclusive
		rec(today.AddDays(-31), 999999, 0),   // outside both
		rec(today.AddDays(-2), 20000, 30000), // negative day
		rec(today.AddDays(-3), 1, 1),
	)
	ov, err := fixedService(store, nil, today).Overview(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !ov.Today.Equal(today) {
		t.Fatalf("today: %s", ov.Today)
	}
	if want := decimal.NewFromInt(80000); !ov.Weekly.Savings.Equal(want) {
		t.Fatalf("weekly: got %s want %s", ov.Weekly.Savings, want)
	}
	if ov.Weekly.Records != 4 {
		t.Fatalf("weekly records: %d", ov.Weekly.Records)
	}
	if want := decimal.NewFromInt(95000); !ov.Monthly.Savings.Equal(want) {
		t.Fatalf("monthly: got %s want %s", ov.Monthly.Savings, want)
	}
	if len(ov.Recent) != RecentLimit || !ov.Recent[0].Date.Equal(today) {
		t.Fatalf("recent: %+v", ov.Recent)
	}
	if len(ov.Daily) != ChartDays {
		t.Fatalf("daily series length %d", len(ov.Daily))
	}
	last := ov.Daily[len(ov.Daily)-1]
	if !last.Date.Equal(today) || !last.Savings.Equal(decimal.NewFromInt(60000)) {
		t.Fatalf("last day: %+v", last)
	}
	if ov.Empty {
		t.Fatal("overview should not be empty")
	}
}

func TestOverview_Empty(t *testing.T) {
	ov, err := fixedService(memory.New(), nil, core.NewDate(2025, 1, 1)).Overview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ov.Empty || !ov.Weekly.Savings.IsZero() || !ov.Monthly.Savings.IsZero() || len(ov.Recent) != 0 {
		t.Fatalf("unexpected overview %+v", ov)
	}
}

func TestOverview_StoreError(t *testing.T) {
	if _, err := NewTransactionService(failingStore{memory.New()}, nil).Overview(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSavings_Window(t *testing.T) {
	today := core.NewDate(2025, 1, 10)
	store := memory.New(rec(today, 10, 3), rec(today.AddDays(-10), 100, 0))
	s := fixedService(store, nil, today)

	weekly, err := s.Savings(context.Background(), core.WeeklyWindow)
	if err != nil || !weekly.Savings.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("weekly: %+v err=%v", weekly, err)
	}
	monthly, err := s.Savings(context.Background(), core.MonthlyWindow)
	if err != nil || !monthly.Savings.Equal(decimal.NewFromInt(107)) {
		t.Fatalf("monthly: %+v err=%v", monthly, err)
	}
}

func TestTransactionService_Close(t *testing.T) {
	pub := &fakePublisher{}
	s := NewTransactionService(memory.New(), pub)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Fatal("publisher was not closed")
	}
}
