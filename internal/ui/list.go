package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// ListState is the render state of the expense list. Exactly one applies.
type ListState int

const (
	ListLoading ListState = iota
	ListError
	ListEmpty
	ListPopulated
)

func (s ListState) String() string {
	switch s {
	case ListLoading:
		return "loading"
	case ListError:
		return "error"
	case ListEmpty:
		return "empty"
	case ListPopulated:
		return "populated"
	}
	return fmt.Sprintf("ListState(%d)", int(s))
}

const (
	MsgLoading      = "Loading expenses..."
	MsgFetchFailed  = "Failed to fetch expenses"
	MsgNoExpenses   = "No expenses yet. Add your first expense above!"
	msgNoneFiltered = `No expenses found for category "%s"`
)

// Selection is the list's filter and sort choice.
type Selection struct {
	Category string
	Sort     core.SortOrder
}

// DefaultSelection shows every category, newest first.
func DefaultSelection() Selection {
	return Selection{Sort: core.SortDateDesc}
}

// Query converts the selection into an API query.
func (s Selection) Query() core.ExpenseQuery {
	return core.ExpenseQuery{Category: s.Category, Sort: s.Sort}
}

// Snapshot is the fetched state a list view is derived from.
type Snapshot struct {
	Expenses   []core.Expense
	Categories []string
	Loading    bool
	Err        string
}

// Row is one formatted table row.
type Row struct {
	ID          string
	Date        string
	Category    string
	Description string
	Amount      string
}

// ListView is everything the list template needs.
type ListView struct {
	State       ListState
	Selection   Selection
	Categories  []string
	Rows        []Row
	TotalAmount decimal.Decimal
	Total       string
	Message     string
}

// List is the view-model of the filter and sort controls. A changed
// selection calls onChange once, outside the lock.
type List struct {
	onChange func(context.Context)

	mu  sync.Mutex
	sel Selection
}

func NewList(onChange func(context.Context)) *List {
	return &List{onChange: onChange, sel: DefaultSelection()}
}

// Selection returns the current selection.
func (l *List) Selection() Selection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sel
}

// SetFilter selects a category; empty shows all. It reports whether the
// selection changed.
func (l *List) SetFilter(ctx context.Context, category string) bool {
	sel := l.Selection()
	sel.Category = strings.TrimSpace(category)
	return l.Apply(ctx, sel)
}

// SetSort selects the sort order. Unknown orders are rejected with
// core.ErrInvalidSort and leave the selection unchanged.
func (l *List) SetSort(ctx context.Context, order core.SortOrder) (bool, error) {
	parsed, err := core.ParseSortOrder(order.String())
	if err != nil {
		return false, err
	}
	sel := l.Selection()
	sel.Sort = parsed
	return l.Apply(ctx, sel), nil
}

// Apply replaces the whole selection, triggering at most one re-fetch.
func (l *List) Apply(ctx context.Context, sel Selection) bool {
	if sel.Sort == "" {
		sel.Sort = core.SortDateDesc
	}
	l.mu.Lock()
	changed := sel != l.sel
	l.sel = sel
	l.mu.Unlock()

	if changed && l.onChange != nil {
		l.onChange(ctx)
	}
	return changed
}

// View derives the render state from the last fetch outcome.
// The total is recomputed from snap.Expenses on every call.
func (l *List) View(snap Snapshot, f *Formatter) ListView {
	sel := l.Selection()
	v := ListView{
		Selection:   sel,
		Categories:  snap.Categories,
		TotalAmount: decimal.Zero,
	}

	switch {
	case snap.Loading:
		v.State = ListLoading
		v.Message = MsgLoading
		return v
	case snap.Err != "":
		v.State = ListError
		v.Message = snap.Err
		return v
	}

	v.TotalAmount = core.Total(snap.Expenses)
	v.Total = f.Currency(v.TotalAmount)

	if len(snap.Expenses) == 0 {
		v.State = ListEmpty
		v.Message = EmptyMessage(sel.Category)
		return v
	}

	v.State = ListPopulated
	v.Rows = make([]Row, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		v.Rows = append(v.Rows, Row{
			ID:          e.ID,
			Date:        f.Date(e.Date),
			Category:    e.Category,
			Description: e.Description,
			Amount:      f.Currency(e.Amount),
		})
	}
	return v
}

// EmptyMessage is shown for an empty collection under the given filter.
func EmptyMessage(category string) string {
	if category == "" {
		return MsgNoExpenses
	}
	return fmt.Sprintf(msgNoneFiltered, category)
}
