package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

const pgSelect = "SELECT id, amount::text, category, description, date, created_at FROM expenses"

// PostgresRepository stores expenses in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository migrates the database at url and opens a pool.
func NewPostgresRepository(ctx context.Context, url string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(url); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, e core.Expense) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO expenses (id, amount, category, description, date, created_at)"+
			" VALUES ($1, $2::numeric, $3, $4, $5, $6)",
		e.ID, e.Amount.String(), e.Category, e.Description, e.Date.Time, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindDuplicate(ctx context.Context, n core.NewExpense, since time.Time) (core.Expense, bool, error) {
	rows, err := r.pool.Query(ctx,
		pgSelect+
			" WHERE amount = $1::numeric AND category = $2 AND description = $3 AND date = $4 AND created_at >= $5"+
			" ORDER BY created_at DESC LIMIT 1",
		n.Amount.String(), n.Category, n.Description, n.Date.Time, since,
	)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("query duplicates: %w", err)
	}
	items, err := collectExpenses(rows)
	if err != nil || len(items) == 0 {
		return core.Expense{}, false, err
	}
	return items[0], true, nil
}

func (r *PostgresRepository) List(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	query := pgSelect
	var args []any
	if q.Category != "" {
		query += " WHERE category = $1"
		args = append(args, q.Category)
	}
	query += orderClause(q.Sort)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT category FROM expenses ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func collectExpenses(rows pgx.Rows) ([]core.Expense, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Expense, error) {
		var (
			e      core.Expense
			amount string
			date   time.Time
		)
		if err := row.Scan(&e.ID, &amount, &e.Category, &e.Description, &date, &e.CreatedAt); err != nil {
			return core.Expense{}, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return core.Expense{}, fmt.Errorf("expense %s: bad amount %q: %w", e.ID, amount, err)
		}
		e.Amount = d
		e.Date = core.DateOf(date)
		e.CreatedAt = e.CreatedAt.UTC()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan expenses: %w", err)
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}
