package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// Field names a draft input. The values double as HTML form field names.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldCategory    Field = "category"
	FieldDescription Field = "description"
	FieldDate        Field = "date"
)

// Fields lists the draft inputs in display order.
var Fields = []Field{FieldAmount, FieldCategory, FieldDescription, FieldDate}

// SuccessWindow is how long the success indicator stays visible.
const SuccessWindow = 3 * time.Second

const (
	MsgAmountInvalid      = "Amount must be greater than 0"
	MsgCategoryRequired   = "Category is required"
	MsgDescriptionMissing = "Description is required"
	MsgDateRequired       = "Date is required"
	MsgDateInvalid        = "Date must be a valid date (YYYY-MM-DD)"
	MsgSubmitFailed       = "Failed to create expense"
	MsgSubmitSucceeded    = "Expense added successfully!"
)

var (
	ErrUnknownField     = errors.New("unknown form field")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrInvalidDraft     = errors.New("draft failed validation")
)

// ExpenseCreator persists a new expense.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
}

// Draft holds the raw text of each input.
type Draft struct {
	Amount      string
	Category    string
	Description string
	Date        string
}

func (d *Draft) set(f Field, v string) bool {
	switch f {
	case FieldAmount:
		d.Amount = v
	case FieldCategory:
		d.Category = v
	case FieldDescription:
		d.Description = v
	case FieldDate:
		d.Date = v
	default:
		return false
	}
	return true
}

// Get returns the raw value of one field.
func (d Draft) Get(f Field) string {
	switch f {
	case FieldAmount:
		return d.Amount
	case FieldCategory:
		return d.Category
	case FieldDescription:
		return d.Description
	case FieldDate:
		return d.Date
	}
	return ""
}

// FieldErrors maps a field to its validation message. Fields that pass are absent.
type FieldErrors map[Field]string

// FormState is a snapshot of the form for rendering.
type FormState struct {
	Draft       Draft
	Errors      FieldErrors
	Submitting  bool
	Success     bool
	SubmitError string
}

// Form is the view-model of the expense entry form. It is safe for
// concurrent use; no lock is held while the creator is called.
type Form struct {
	creator       ExpenseCreator
	onCreated     func(context.Context)
	now           func() time.Time
	successWindow time.Duration

	mu           sync.Mutex
	draft        Draft
	errs         FieldErrors
	submitting   bool
	success      bool
	successSeq   uint64
	successTimer *time.Timer
	submitErr    string
}

type FormOption func(*Form)

// WithClock sets the source of "today" for fresh drafts.
func WithClock(now func() time.Time) FormOption {
	return func(f *Form) { f.now = now }
}

// WithSuccessWindow overrides SuccessWindow.
func WithSuccessWindow(d time.Duration) FormOption {
	return func(f *Form) { f.successWindow = d }
}

// NewForm returns a form with an empty draft dated today. onCreated runs
// after every successful submission, outside the form's lock.
func NewForm(creator ExpenseCreator, onCreated func(context.Context), opts ...FormOption) *Form {
	f := &Form{
		creator:       creator,
		onCreated:     onCreated,
		now:           time.Now,
		successWindow: SuccessWindow,
		errs:          FieldErrors{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.draft = f.emptyDraft()
	return f
}

func (f *Form) emptyDraft() Draft {
	return Draft{Date: f.now().Format(core.DateLayout)}
}

// Update sets one draft field and clears that field's validation error.
// Edits are refused while a submission is pending.
func (f *Form) Update(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmitInProgress
	}
	if !f.draft.set(field, value) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	delete(f.errs, field)
	return nil
}

// Validate checks the current draft without changing the form.
func (f *Form) Validate() FieldErrors {
	f.mu.Lock()
	d := f.draft
	f.mu.Unlock()

	_, errs := validateDraft(d)
	return errs
}

// validateDraft applies the per-field rules and, when all pass, returns the
// trimmed and parsed expense.
func validateDraft(d Draft) (core.NewExpense, FieldErrors) {
	errs := FieldErrors{}
	var out core.NewExpense

	if amount, err := core.ParseAmount(d.Amount); err != nil {
		errs[FieldAmount] = MsgAmountInvalid
	} else {
		out.Amount = amount
	}

	out.Category = strings.TrimSpace(d.Category)
	if out.Category == "" {
		errs[FieldCategory] = MsgCategoryRequired
	}

	out.Description = strings.TrimSpace(d.Description)
	if out.Description == "" {
		errs[FieldDescription] = MsgDescriptionMissing
	}

	if strings.TrimSpace(d.Date) == "" {
		errs[FieldDate] = MsgDateRequired
	} else if date, err := core.ParseDate(d.Date); err != nil {
		errs[FieldDate] = MsgDateInvalid
	} else {
		out.Date = date
	}

	return out, errs
}

// Submit validates the draft and, when it passes, sends it to the creator.
//
// Validation failures are stored per field and reported as ErrInvalidDraft
// without any network call. A creator failure is stored as a single message
// and the draft is kept. On success the draft is reset, the success
// indicator is shown for the success window and onCreated is invoked.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInProgress
	}
	f.submitErr = ""
	f.clearSuccessLocked()

	expense, errs := validateDraft(f.draft)
	if len(errs) > 0 {
		f.errs = errs
		f.mu.Unlock()
		return ErrInvalidDraft
	}
	f.submitting = true
	f.mu.Unlock()

	_, err := f.creator.CreateExpense(ctx, expense)

	f.mu.Lock()
	f.submitting = false
	if err != nil {
		f.submitErr = userMessage(err, MsgSubmitFailed)
		f.mu.Unlock()
		return fmt.Errorf("submit expense: %w", err)
	}
	f.draft = f.emptyDraft()
	f.errs = FieldErrors{}
	f.showSuccessLocked()
	f.mu.Unlock()

	if f.onCreated != nil {
		f.onCreated(ctx)
	}
	return nil
}

func (f *Form) showSuccessLocked() {
	f.success = true
	f.successSeq++
	seq := f.successSeq
	f.successTimer = time.AfterFunc(f.successWindow, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.successSeq == seq {
			f.success = false
			f.successTimer = nil
		}
	})
}

func (f *Form) clearSuccessLocked() {
	if f.successTimer != nil {
		f.successTimer.Stop()
		f.successTimer = nil
	}
	f.successSeq++
	f.success = false
}

// State returns a copy of the form for rendering.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make(FieldErrors, len(f.errs))
	for k, v := range f.errs {
		errs[k] = v
	}
	return FormState{
		Draft:       f.draft,
		Errors:      errs,
		Submitting:  f.submitting,
		Success:     f.success,
		SubmitError: f.submitErr,
	}
}

// Close stops the success timer.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearSuccessLocked()
}

// userMessage extracts a user facing message from err, or returns fallback.
func userMessage(err error, fallback string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
