package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finadvisor/internal/amqp"
	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
)

// MirrorWorker applies upsert events to a second store so it converges to the primary table
type MirrorWorker struct {
	mirror ledger.Store
	source ledger.Reader
}

// NewMirrorWorker creates a worker. source may be nil, in which case
// StartupReconcile does nothing.
func NewMirrorWorker(mirror ledger.Store, source ledger.Reader) *MirrorWorker {
	return &MirrorWorker{
		mirror: mirror,
		source: source,
	}
}

// HandleTransactionUpserted processes a single upsert message from AMQP
func (w *MirrorWorker) HandleTransactionUpserted(ctx context.Context, msg *amqp.TransactionUpserted) error {
	r := msg.Record()
	if err := w.mirror.Upsert(ctx, r); err != nil {
		return fmt.Errorf("mirror transaction %s: %w", r.Date, err)
	}

	slog.InfoContext(ctx, "Mirrored transaction",
		"date", r.Date.String(),
		"budget", r.Budget.String(),
		"expense", r.Expense.String(),
		"published_at", msg.Timestamp)

	return nil
}

// StartupReconcile copies into the mirror every source record it is missing
// or holds with different amounts. This recovers from messages lost while
// the worker was down.
func (w *MirrorWorker) StartupReconcile(ctx context.Context) error {
	if err := w.mirror.EnsureInitialized(ctx); err != nil {
		return fmt.Errorf("initialize mirror: %w", err)
	}
	if w.source == nil {
		slog.InfoContext(ctx, "No source store configured, skipping startup reconcile")
		return nil
	}

	source, err := w.source.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	mirrored, err := w.mirror.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("read mirror: %w", err)
	}

	pending := Diff(source, mirrored)
	if len(pending) == 0 {
		slog.InfoContext(ctx, "Mirror is up to date", "records", len(source))
		return nil
	}

	slog.InfoContext(ctx, "Found stale mirror records on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, r := range pending {
		if err := w.mirror.Upsert(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during startup",
				"date", r.Date.String(), "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup reconcile completed",
		"total", len(pending),
		"mirrored", successCount,
		"errors", errorCount)

	return nil
}

// Diff returns the records of source that are absent from mirror or differ in amount.
func Diff(source, mirror core.Table) core.Table {
	var out core.Table
	for _, r := range source {
		m, ok := mirror.Find(r.Date)
		if ok && m.Budget.Equal(r.Budget) && m.Expense.Equal(r.Expense) {
			continue
		}
		out = append(out, r)
	}
	return out
}
