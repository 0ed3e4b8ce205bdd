// Package csvfile keeps the transaction table in a single CSV file that is
// rewritten in full on every upsert.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
)


// Store has no locking: concurrent upserts race and the last rename wins.
type Store struct {
	path string
}

var _ ledger.Store = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureInitialized creates the directory and a header-only file when missing.
// An existing file is left untouched.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if err := s.write(core.Table{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Created transaction table", "path", s.path)
	return nil
}

// GetAll reads the whole file. A missing, empty or header-only file is an empty table.
func (s *Store) GetAll(_ context.Context) (core.Table, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return core.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	table, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return table, nil
}

// Upsert drops any record with the same date, appends r and rewrites the file.
func (s *Store) Upsert(ctx context.Context, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	table, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	table = table.Upsert(r)
	if err := s.write(table); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Transaction table rewritten", "path", s.path, "records", len(table), "date", r.Date.String())
	return nil
}

// write replaces the file through a temp file and rename so readers never
// observe a partially written table.
func (s *Store) write(table core.Table) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, table); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Decode parses a CSV table. Zero bytes and a lone header both decode to an empty table.
func Decode(r io.Reader) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrMalformedTable, err)
	}
	return ledger.ParseRows(rows)
}

// Encode writes the header followed by one row per record.
func Encode(w io.Writer, table core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledger.Columns); err != nil {
		return err
	}
	for _, r := range table {
		if err := cw.Write(ledger.FormatRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
