package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/storage"
)

// DuplicateWindow is how long an identical submission is answered with the
// record it duplicates instead of a new one.
const DuplicateWindow = 5 * time.Second

// EventPublisher announces created expenses. It is optional.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
	Close() error
}

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	repo      storage.Repository
	publisher EventPublisher
	logger    *applog.Logger

	now    func() time.Time
	newID  func() string
	window time.Duration

	// createMu serializes the duplicate check with the insert.
	createMu sync.Mutex
}

type Option func(*ExpenseService)

func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ExpenseService) { s.newID = newID }
}

func WithDuplicateWindow(d time.Duration) Option {
	return func(s *ExpenseService) { s.window = d }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

// NewExpenseService builds a service over repo. publisher may be nil.
func NewExpenseService(repo storage.Repository, publisher EventPublisher, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		window:    DuplicateWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.Wrap(nil, applog.ComponentExpense)
	}
	return s
}

// CreateExpense validates and stores n. When an identical expense was stored
// within the duplicate window the existing record is returned and created
// is false.
func (s *ExpenseService) CreateExpense(ctx context.Context, n core.NewExpense) (e core.Expense, created bool, err error) {
	n.Category = strings.TrimSpace(n.Category)
	n.Description = strings.TrimSpace(n.Description)
	if err := n.Validate(); err != nil {
		return core.Expense{}, false, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	now := s.now()
	if s.window > 0 {
		dup, ok, err := s.repo.FindDuplicate(ctx, n, now.Add(-s.window))
		if err != nil {
			return core.Expense{}, false, fmt.Errorf("check duplicate: %w", err)
		}
		if ok {
			s.logger.InfoContext(ctx, "Duplicate expense submission ignored",
				applog.NewFields().WithExpense(dup.ID, dup.Amount, dup.Category).ToSlice()...)
			return dup, false, nil
		}
	}

	e = core.Expense{
		ID:          s.newID(),
		Amount:      n.Amount,
		Category:    n.Category,
		Description: n.Description,
		Date:        n.Date,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return core.Expense{}, false, fmt.Errorf("save expense: %w", err)
	}

	s.publishCreated(ctx, e)
	return e, true, nil
}

// ListExpenses returns the stored expenses matching q.
func (s *ExpenseService) ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	items, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

// Categories returns the distinct categories in alphabetical order.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Ping reports whether the storage backend is reachable.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *ExpenseService) publishCreated(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		return
	}
	// The record is already stored, a failed publish must not fail the request.
	if err := s.publisher.PublishExpenseCreated(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense created message",
			applog.FieldExpenseID, e.ID, applog.FieldError, err)
	}
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
