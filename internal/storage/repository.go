package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finadvisor/internal/core"
	"finadvisor/internal/ledger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect holds the driver name and the statements that differ per database.
type Dialect struct {
	Name       string
	DriverName string
	upsertSQL  string
	selectSQL  string
}

var (
	SQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		upsertSQL: `INSERT INTO transactions (date, budget, expense, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(date) DO UPDATE SET
    budget = excluded.budget,
    expense = excluded.expense,
    updated_at = CURRENT_TIMESTAMP`,
		selectSQL: `SELECT date, budget, expense FROM transactions ORDER BY date`,
	}

	Postgres = Dialect{
		Name:       "postgres",
		DriverName: "postgres",
		upsertSQL: `INSERT INTO transactions (date, budget, expense, updated_at)
VALUES ($1::date, $2::numeric, $3::numeric, now())
ON CONFLICT (date) DO UPDATE SET
    budget = EXCLUDED.budget,
    expense = EXCLUDED.expense,
    updated_at = now()`,
		selectSQL: `SELECT to_char(date, 'YYYY-MM-DD'), budget::text, expense::text FROM transactions ORDER BY date`,
	}
)

// SQLRepository stores one row per date. Upserts hit a single row, so
// there is no whole-table rewrite here.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	dsn     string
}

var _ ledger.Store = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating the directory if needed) a SQLite database.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, dbPath)
}

// NewPostgresRepository connects to PostgreSQL using a lib/pq DSN.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	return open(Postgres, dsn)
}

func open(d Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{db: db, dialect: d, dsn: dsn}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureInitialized runs the embedded migrations. Already-applied migrations are a no-op.
func (r *SQLRepository) EnsureInitialized(ctx context.Context) error {
	if err := RunMigrations(r.dialect, r.dsn); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction schema ready", "dialect", r.dialect.Name)
	return nil
}

// Upsert implements ledger.Writer
func (r *SQLRepository) Upsert(ctx context.Context, rec core.TransactionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	_, err := r.db.ExecContext(ctx, r.dialect.upsertSQL,
		rec.Date.String(), rec.Budget.String(), rec.Expense.String())
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", rec.Date, err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"dialect", r.dialect.Name,
		"date", rec.Date.String(),
		"budget", rec.Budget.String(),
		"expense", rec.Expense.String())

	return nil
}

// GetAll implements ledger.Reader
func (r *SQLRepository) GetAll(ctx context.Context) (core.Table, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.selectSQL)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	header, err := ledger.ParseHeader(ledger.Columns)
	if err != nil {
		return nil, err
	}
	table := core.Table{}
	line := 0
	for rows.Next() {
		line++
		var date, budget, expense string
		if err := rows.Scan(&date, &budget, &expense); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec, err := header.ParseRow([]string{date, budget, expense}, line)
		if err != nil {
			return nil, err
		}
		table = append(table, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return table, nil
}
