package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

const expenseColumns = "id, amount, category, description, date, created_at"

// SQLiteRepository stores expenses in a single SQLite file.
//
// Amounts are kept as canonical decimal text, dates as YYYY-MM-DD text and
// created_at as unix nanoseconds so that ordering stays lexical and exact.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository migrates and opens the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := RunSQLiteMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.Amount.String(), e.Category, e.Description, e.Date.String(), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindDuplicate(ctx context.Context, n core.NewExpense, since time.Time) (core.Expense, bool, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses"+
			" WHERE category = ? AND description = ? AND date = ? AND created_at >= ?"+
			" ORDER BY created_at DESC",
		n.Category, n.Description, n.Date.String(), since.UnixNano(),
	)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("query duplicates: %w", err)
	}
	candidates, err := scanSQLiteRows(rows)
	if err != nil {
		return core.Expense{}, false, err
	}
	for _, e := range candidates {
		if n.Matches(e) {
			return e, true, nil
		}
	}
	return core.Expense{}, false, nil
}

func (r *SQLiteRepository) List(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses"
	var args []any
	if q.Category != "" {
		query += " WHERE category = ?"
		args = append(args, q.Category)
	}
	query += orderClause(q.Sort)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return scanSQLiteRows(rows)
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT category FROM expenses ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSQLiteRows(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var (
			e         core.Expense
			amount    string
			date      string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &amount, &e.Category, &e.Description, &date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("expense %s: bad amount %q: %w", e.ID, amount, err)
		}
		e.Amount = d
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: bad date %q: %w", e.ID, date, err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
