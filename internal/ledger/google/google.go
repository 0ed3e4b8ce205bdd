package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"finadvisor/internal/core"
	"finadvisor/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when GOOGLE_SHEET_NAME is not set.
const DefaultSheetName = "Transactions"

// Store keeps the table in columns A:C of one sheet and rewrites the whole
// range on every upsert.
type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ledger.Store = (*Store)(nil)

// Config names the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets-backed store authenticated with a service account.
// Extra client options (endpoint, HTTP client) are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}

	creds, err := credentialsOption(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, append(creds, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets store created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	return newWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Store {
	return &Store{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func credentialsOption(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case cfg.ServiceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case cfg.ServiceAccountFile != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read credentials file", "path", cfg.ServiceAccountFile, "size", len(b))
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func (s *Store) tableRange() string {
	return fmt.Sprintf("%s!A:C", s.sheetName)
}

// EnsureInitialized writes the header row when the sheet is empty.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:C1", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{headerRow()}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header to %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Initialized transactions sheet", "sheet", s.sheetName)
	return nil
}

// GetAll reads columns A:C and parses them like the CSV table.
func (s *Store) GetAll(ctx context.Context) (core.Table, error) {
	if s.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := s.tableRange()
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	table, err := parseValues(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rng, err)
	}
	return table, nil
}

// Upsert overwrites the table from A1 with r applied, then clears whatever
// rows remain below it. A failed write leaves the previous rows in place.
func (s *Store) Upsert(ctx context.Context, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	table, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	table = table.Upsert(r)

	start := fmt.Sprintf("%s!A1", s.sheetName)
	rows := tableValues(table)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, start, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write table to %s: %w", s.sheetName, err)
	}

	// Blank rows skipped by GetAll can leave stale data past the new end
	tail := fmt.Sprintf("%s!A%d:C", s.sheetName, len(rows)+1)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, tail, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tail, err)
	}

	slog.DebugContext(ctx, "Transactions sheet rewritten", "sheet", s.sheetName, "records", len(table), "date", r.Date.String())
	return nil
}
