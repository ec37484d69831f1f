// Package ui holds the server-side view-models of the expense tracker: the
// entry form, the filtered list and the root that composes them.
package ui

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

type ExpenseReader interface {
	ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error)
}

type CategoryReader interface {
	ListCategories(ctx context.Context) ([]string, error)
}

// API is the remote surface a root needs.
type API interface {
	ExpenseReader
	CategoryReader
	ExpenseCreator
}

// View is a consistent snapshot of a root for rendering a page.
type View struct {
	Form       FormState
	List       ListView
	Categories []string
}

// Root owns the fetched expense and category collections and wires the
// form and list to them. One root serves one browser session.
type Root struct {
	api    API
	format *Formatter
	logger *applog.Logger

	Form *Form
	List *List

	mu         sync.Mutex
	expenses   []core.Expense
	categories []string
	loading    bool
	fetchErr   string
	generation uint64
}

// NewRoot returns an unmounted root; it shows the loading state until the
// first Refresh completes.
func NewRoot(api API, format *Formatter, logger *applog.Logger, formOpts ...FormOption) *Root {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentUI)
	}
	r := &Root{
		api:        api,
		format:     format,
		logger:     logger.WithComponent("root"),
		categories: []string{},
		loading:    true,
	}
	r.Form = NewForm(api, r.refreshAfterChange, formOpts...)
	r.List = NewList(r.refreshAfterChange)
	return r
}

// Mount performs the initial fetch.
func (r *Root) Mount(ctx context.Context) error {
	return r.Refresh(ctx)
}

func (r *Root) refreshAfterChange(ctx context.Context) {
	// Failures are already recorded in the view state.
	_ = r.Refresh(ctx)
}

// Refresh re-fetches expenses for the current selection together with the
// category list.
//
// Each call takes a new generation; when a later Refresh started before
// this one finished, this result is discarded. An expense failure puts the
// list in its error state and hides stale rows. A category failure is logged
// and keeps the previous suggestions.
func (r *Root) Refresh(ctx context.Context) error {
	// The query is read with the generation so a later generation never
	// carries an older selection. List never takes r.mu.
	r.mu.Lock()
	query := r.List.Selection().Query()
	r.generation++
	gen := r.generation
	r.loading = true
	r.fetchErr = ""
	r.mu.Unlock()

	var (
		g          errgroup.Group
		expenses   []core.Expense
		categories []string
		catErr     error
	)
	g.Go(func() error {
		var err error
		expenses, err = r.api.ListExpenses(ctx, query)
		return err
	})
	g.Go(func() error {
		categories, catErr = r.api.ListCategories(ctx)
		return nil
	})
	err := g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		r.logger.DebugContext(ctx, "Discarding superseded refresh",
			applog.FieldGeneration, gen, "current_generation", r.generation)
		return nil
	}

	r.loading = false
	if catErr != nil {
		r.logger.WarnContext(ctx, "Error fetching categories", applog.FieldError, catErr)
	} else {
		r.categories = categories
	}

	if err != nil {
		r.expenses = nil
		r.fetchErr = userMessage(err, MsgFetchFailed)
		fields := applog.NewFields().
			WithQuery(query.Category, query.Sort.String()).
			WithError(err).
			WithOperation(applog.OpRefresh)
		fields[applog.FieldGeneration] = gen
		r.logger.ErrorContext(ctx, "Error fetching expenses", fields.ToSlice()...)
		return fmt.Errorf("refresh expenses: %w", err)
	}
	r.expenses = expenses
	r.logger.DebugContext(ctx, "Refresh applied",
		applog.FieldGeneration, gen, applog.FieldCount, len(expenses))
	return nil
}

// Snapshot returns the fetched state. The slices are shared and must not be mutated.
func (r *Root) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Expenses:   r.expenses,
		Categories: r.categories,
		Loading:    r.loading,
		Err:        r.fetchErr,
	}
}

// View renders the form and list from one snapshot.
func (r *Root) View() View {
	snap := r.Snapshot()
	return View{
		Form:       r.Form.State(),
		List:       r.List.View(snap, r.format),
		Categories: snap.Categories,
	}
}

// Close releases the form timer.
func (r *Root) Close() {
	r.Form.Close()
}
