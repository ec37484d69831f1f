package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func record(id, amount, category string, date core.Date, createdOffset time.Duration) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Description: "desc " + id,
		Date:        date,
		CreatedAt:   base.Add(createdOffset),
	}
}

func seed(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []core.Expense{
		record("a", "100", "Food", core.NewDate(2024, 3, 1), 0),
		record("b", "250.50", "Travel", core.NewDate(2024, 3, 5), time.Second),
		record("c", "20", "Food", core.NewDate(2024, 3, 5), 2*time.Second),
		record("d", "5.25", "Bills", core.NewDate(2024, 2, 28), 3*time.Second),
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("create %s: %v", e.ID, err)
		}
	}
}

func ids(items []core.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func backends(t *testing.T) map[string]func(t *testing.T) Repository {
	return map[string]func(t *testing.T) Repository{
		"memory": func(t *testing.T) Repository { return NewMemoryRepository() },
		"sqlite": func(t *testing.T) Repository {
			repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { repo.Close() })
			return repo
		},
	}
}

func TestRepository_List(t *testing.T) {
	tests := []struct {
		name  string
		query core.ExpenseQuery
		want  []string
	}{
		{"date desc with created_at tie break", core.ExpenseQuery{Sort: core.SortDateDesc}, []string{"c", "b", "a", "d"}},
		{"date asc with created_at tie break", core.ExpenseQuery{Sort: core.SortDateAsc}, []string{"d", "a", "b", "c"}},
		{"unknown sort falls back to newest first", core.ExpenseQuery{Sort: "amount"}, []string{"d", "c", "b", "a"}},
		{"empty sort falls back to newest first", core.ExpenseQuery{}, []string{"d", "c", "b", "a"}},
		{"category filter", core.ExpenseQuery{Category: "Food", Sort: core.SortDateDesc}, []string{"c", "a"}},
		{"unknown category", core.ExpenseQuery{Category: "food"}, []string{}},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			seed(t, repo)
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := repo.List(context.Background(), tt.query)
					if err != nil {
						t.Fatalf("List: %v", err)
					}
					if got == nil {
						t.Fatalf("List returned nil slice")
					}
					if !equalStrings(ids(got), tt.want) {
						t.Errorf("List(%+v) = %v, want %v", tt.query, ids(got), tt.want)
					}
				})
			}
		})
	}
}

func TestRepository_RoundTripsFields(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			seed(t, repo)
			got, err := repo.List(context.Background(), core.ExpenseQuery{Category: "Travel"})
			if err != nil || len(got) != 1 {
				t.Fatalf("List = %v, %v", got, err)
			}
			e := got[0]
			if !e.Amount.Equal(decimal.RequireFromString("250.5")) {
				t.Errorf("amount = %s", e.Amount)
			}
			if e.Date.String() != "2024-03-05" || e.Description != "desc b" {
				t.Errorf("unexpected record %+v", e)
			}
			if !e.CreatedAt.Equal(base.Add(time.Second)) {
				t.Errorf("created_at = %v", e.CreatedAt)
			}
		})
	}
}

func TestRepository_Categories(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			got, err := repo.Categories(context.Background())
			if err != nil || got == nil || len(got) != 0 {
				t.Fatalf("empty store categories = %v, %v", got, err)
			}
			seed(t, repo)
			got, err = repo.Categories(context.Background())
			if err != nil {
				t.Fatalf("Categories: %v", err)
			}
			if want := []string{"Bills", "Food", "Travel"}; !equalStrings(got, want) {
				t.Errorf("Categories = %v, want %v", got, want)
			}
		})
	}
}

func TestRepository_FindDuplicate(t *testing.T) {
	n := core.NewExpense{
		Amount:      decimal.RequireFromString("20.00"),
		Category:    "Food",
		Description: "desc c",
		Date:        core.NewDate(2024, 3, 5),
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			seed(t, repo)
			ctx := context.Background()

			got, ok, err := repo.FindDuplicate(ctx, n, base)
			if err != nil || !ok || got.ID != "c" {
				t.Fatalf("FindDuplicate = %v, %v, %v; want c", got.ID, ok, err)
			}

			if _, ok, _ := repo.FindDuplicate(ctx, n, base.Add(3*time.Second)); ok {
				t.Errorf("record older than since must not match")
			}

			other := n
			other.Amount = decimal.RequireFromString("20.01")
			if _, ok, _ := repo.FindDuplicate(ctx, other, base); ok {
				t.Errorf("different amount must not match")
			}
		})
	}
}

func TestRepository_Ping(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := open(t).Ping(context.Background()); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seed(t, repo)
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.List(context.Background(), core.ExpenseQuery{})
	if err != nil || len(got) != 4 {
		t.Fatalf("after reopen List = %d items, %v", len(got), err)
	}
}
