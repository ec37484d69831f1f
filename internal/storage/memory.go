package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// MemoryRepository keeps expenses in process memory. It is the default
// backend for local runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []core.Expense
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, e core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, e)
	return nil
}

func (r *MemoryRepository) FindDuplicate(_ context.Context, n core.NewExpense, since time.Time) (core.Expense, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  core.Expense
		found bool
	)
	for _, e := range r.items {
		if e.CreatedAt.Before(since) || !n.Matches(e) {
			continue
		}
		if !found || e.CreatedAt.After(best.CreatedAt) {
			best, found = e, true
		}
	}
	return best, found, nil
}

func (r *MemoryRepository) List(_ context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	r.mu.RLock()
	out := make([]core.Expense, 0, len(r.items))
	for _, e := range r.items {
		if q.Category == "" || e.Category == q.Category {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sortExpenses(out, q.Sort)
	return out, nil
}

func (r *MemoryRepository) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, e := range r.items {
		if _, ok := seen[e.Category]; !ok {
			seen[e.Category] = struct{}{}
			out = append(out, e.Category)
		}
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
