package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/storage"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []core.Expense
	err       error
	closed    bool
}

func (p *fakePublisher) PublishExpenseCreated(_ context.Context, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, e)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type failingRepo struct {
	storage.Repository
	err error
}

func (r failingRepo) FindDuplicate(context.Context, core.NewExpense, time.Time) (core.Expense, bool, error) {
	return core.Expense{}, false, nil
}

func (r failingRepo) Create(context.Context, core.Expense) error { return r.err }

func (r failingRepo) Close() error { return nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sequentialIDs() func() string {
	n := 0
	return func() string { n++; return "exp-" + strconv.Itoa(n) }
}

func lunch() core.NewExpense {
	return core.NewExpense{
		Amount:      decimal.RequireFromString("250.50"),
		Category:    "Food",
		Description: "Lunch",
		Date:        core.NewDate(2024, 3, 10),
	}
}

func newTestService(pub EventPublisher) (*ExpenseService, *clock) {
	c := &clock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewExpenseService(storage.NewMemoryRepository(), pub,
		WithClock(c.now), WithIDGenerator(sequentialIDs()))
	return svc, c
}

func TestExpenseService_CreateExpense(t *testing.T) {
	pub := &fakePublisher{}
	svc, c := newTestService(pub)

	in := lunch()
	in.Category = "  Food "
	in.Description = " Lunch  "
	e, created, err := svc.CreateExpense(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("CreateExpense = %v, %v", created, err)
	}
	if e.ID != "exp-1" || e.Category != "Food" || e.Description != "Lunch" || !e.CreatedAt.Equal(c.t) {
		t.Errorf("unexpected record %+v", e)
	}
	if len(pub.published) != 1 || pub.published[0].ID != "exp-1" {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestExpenseService_CreateExpenseValidation(t *testing.T) {
	svc, _ := newTestService(nil)
	tests := []struct {
		name   string
		mutate func(*core.NewExpense)
		want   error
	}{
		{"zero amount", func(n *core.NewExpense) { n.Amount = decimal.Zero }, core.ErrInvalidAmount},
		{"blank category", func(n *core.NewExpense) { n.Category = "   " }, core.ErrEmptyCategory},
		{"blank description", func(n *core.NewExpense) { n.Description = "" }, core.ErrEmptyDescription},
		{"missing date", func(n *core.NewExpense) { n.Date = core.Date{} }, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := lunch()
			tt.mutate(&n)
			if _, _, err := svc.CreateExpense(context.Background(), n); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	items, _ := svc.ListExpenses(context.Background(), core.ExpenseQuery{})
	if len(items) != 0 {
		t.Errorf("invalid submissions must not be stored, got %d", len(items))
	}
}

func TestExpenseService_DuplicateWindow(t *testing.T) {
	pub := &fakePublisher{}
	svc, c := newTestService(pub)
	ctx := context.Background()

	first, _, err := svc.CreateExpense(ctx, lunch())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	c.advance(2 * time.Second)
	again := lunch()
	again.Amount = decimal.RequireFromString("250.5")
	dup, created, err := svc.CreateExpense(ctx, again)
	if err != nil || created || dup.ID != first.ID {
		t.Fatalf("retry within window = %s, created=%v, err=%v; want %s", dup.ID, created, err, first.ID)
	}

	c.advance(4 * time.Second)
	later, created, err := svc.CreateExpense(ctx, lunch())
	if err != nil || !created || later.ID == first.ID {
		t.Fatalf("submission after window = %s, created=%v, err=%v", later.ID, created, err)
	}

	items, _ := svc.ListExpenses(ctx, core.ExpenseQuery{})
	if len(items) != 2 {
		t.Errorf("stored %d records, want 2", len(items))
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d events, want 2", len(pub.published))
	}
}

func TestExpenseService_ConcurrentDuplicates(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.CreateExpense(ctx, lunch()); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	items, _ := svc.ListExpenses(ctx, core.ExpenseQuery{})
	if len(items) != 1 {
		t.Errorf("stored %d records, want 1", len(items))
	}
}

func TestExpenseService_PublishFailureDoesNotFailCreate(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newTestService(pub)

	if _, created, err := svc.CreateExpense(context.Background(), lunch()); err != nil || !created {
		t.Fatalf("CreateExpense = %v, %v", created, err)
	}
}

func TestExpenseService_StorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewExpenseService(failingRepo{err: boom}, nil)

	_, _, err := svc.CreateExpense(context.Background(), lunch())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
}

func TestExpenseService_Categories(t *testing.T) {
	svc, c := newTestService(nil)
	ctx := context.Background()
	for _, cat := range []string{"Travel", "Food", "Bills", "Food"} {
		n := lunch()
		n.Category = cat
		n.Description = "item " + cat + c.t.String()
		c.advance(time.Second)
		if _, _, err := svc.CreateExpense(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := []string{"Bills", "Food", "Travel"}
	if len(got) != len(want) {
		t.Fatalf("Categories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Categories = %v, want %v", got, want)
		}
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := &ExpenseService{}
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		svc, _ := newTestService(pub)
		if err := svc.Close(); err != nil || !pub.closed {
			t.Fatalf("Close = %v, publisher closed = %v", err, pub.closed)
		}
	})
}
