package ui

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// fakeAPI records calls and serves canned responses.
type fakeAPI struct {
	mu         sync.Mutex
	expenses   []core.Expense
	categories []string
	listErr    error
	catErr     error
	createErr  error

	// listHook, when set, replaces the canned expense response.
	listHook   func(call int, q core.ExpenseQuery) ([]core.Expense, error)
	createHook func(e core.NewExpense) (core.Expense, error)

	listCalls []core.ExpenseQuery
	catCalls  int
	created   []core.NewExpense
}

func (f *fakeAPI) ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, q)
	call := len(f.listCalls)
	hook, items, err := f.listHook, f.expenses, f.listErr
	f.mu.Unlock()

	if hook != nil {
		return hook(call, q)
	}
	return items, err
}

func (f *fakeAPI) ListCategories(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catCalls++
	return f.categories, f.catErr
}

func (f *fakeAPI) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	f.mu.Lock()
	f.created = append(f.created, e)
	hook, err := f.createHook, f.createErr
	f.mu.Unlock()

	if hook != nil {
		return hook(e)
	}
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{ID: "new", Amount: e.Amount, Category: e.Category, Description: e.Description, Date: e.Date}, nil
}

func (f *fakeAPI) listQueries() []core.ExpenseQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ExpenseQuery(nil), f.listCalls...)
}

func (f *fakeAPI) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func expense(id, amount, category string, day int) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Description: "item " + id,
		Date:        core.NewDate(2024, time.January, day),
	}
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.Local)
}

func testFormatter() *Formatter {
	return NewFormatter("en-IN", "₹")
}
