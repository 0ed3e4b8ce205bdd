package ledger

import (
	"context"
	"errors"

	"finadvisor/internal/core"
)

// ErrMalformedTable is wrapped by every store when durable content cannot be parsed.
var ErrMalformedTable = errors.New("malformed transaction table")

// Columns is the header every tabular store writes, in this order.
var Columns = []string{"date", "budget", "expense"}

// Ports for outbound adapters.
type (
	Initializer interface {
		// EnsureInitialized creates the storage location and an empty table if absent.
		EnsureInitialized(ctx context.Context) error
	}

	Writer interface {
		// Upsert replaces any record with the same date and persists the full table.
		Upsert(ctx context.Context, r core.TransactionRecord) error
	}

	Reader interface {
		// GetAll returns every stored record. Empty content is an empty table.
		GetAll(ctx context.Context) (core.Table, error)
	}

	Store interface {
		Initializer
		Writer
		Reader
	}
)
