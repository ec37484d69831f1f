// Package storage persists expenses for the expense API.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// Repository is the storage port of the expense service.
type Repository interface {
	// Create inserts a fully populated record.
	Create(ctx context.Context, e core.Expense) error
	// FindDuplicate returns the most recent record created at or after since
	// whose user-entered fields match n.
	FindDuplicate(ctx context.Context, n core.NewExpense, since time.Time) (core.Expense, bool, error)
	// List returns the records matching q, ordered by q.Sort.
	List(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error)
	// Categories returns the distinct categories in alphabetical order.
	Categories(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// sortExpenses orders items in place the way every backend orders a listing:
// date_desc and date_asc sort by date with created_at as tie break, any other
// value sorts by created_at, newest first.
func sortExpenses(items []core.Expense, order core.SortOrder) {
	var less func(a, b core.Expense) bool
	switch order {
	case core.SortDateDesc:
		less = func(a, b core.Expense) bool {
			if !a.Date.Equal(b.Date.Time) {
				return a.Date.After(b.Date.Time)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	case core.SortDateAsc:
		less = func(a, b core.Expense) bool {
			if !a.Date.Equal(b.Date.Time) {
				return a.Date.Before(b.Date.Time)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	default:
		less = func(a, b core.Expense) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// orderClause is the SQL counterpart of sortExpenses.
func orderClause(order core.SortOrder) string {
	switch order {
	case core.SortDateDesc:
		return " ORDER BY date DESC, created_at DESC"
	case core.SortDateAsc:
		return " ORDER BY date ASC, created_at ASC"
	default:
		return " ORDER BY created_at DESC"
	}
}
