package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
	"finadvisor/internal/ledger/csvfile"
)

type Store struct {
	mu    sync.Mutex
	items core.Table
}

var _ ledger.Store = (*Store)(nil)

func New(seed ...core.TransactionRecord) *Store {
	s := &Store{}
	for _, r := range seed {
		s.items = s.items.Upsert(r)
	}
	return s
}

// NewFromFile seeds the store from a CSV table. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	table, err := csvfile.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(table...), nil
}

func (s *Store) EnsureInitialized(_ context.Context) error {
	return nil
}

func (s *Store) Upsert(_ context.Context, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items.Upsert(r)
	return nil
}

// GetAll returns a copy of the table.
func (s *Store) GetAll(_ context.Context) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(core.Table{}, s.items...), nil
}
