package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of an expense date.
const DateLayout = "2006-01-02"

const (
	SortDateDesc SortOrder = "date_desc"
	SortDateAsc  SortOrder = "date_asc"
)

type (
	// SortOrder selects how the server orders the expense collection.
	SortOrder string

	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	// Expense is a server-owned expense record.
	Expense struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"created_at,omitempty"`
	}

	// NewExpense is the payload of an expense creation.
	NewExpense struct {
		Amount      decimal.Decimal
		Category    string
		Description string
		Date        Date
	}

	// ExpenseQuery narrows and orders an expense listing.
	ExpenseQuery struct {
		Category string
		Sort     SortOrder
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidSort      = errors.New("invalid sort order")
)

// ParseSortOrder accepts the two wire values of a sort order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.TrimSpace(s)) {
	case SortDateDesc:
		return SortDateDesc, nil
	case SortDateAsc:
		return SortDateAsc, nil
	default:
		return "", ErrInvalidSort
	}
}

func (o SortOrder) String() string { return string(o) }

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts a plain date or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return ErrInvalidDate
	}
	*d = DateOf(t)
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks the rules the server enforces on a new expense.
func (e NewExpense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	return e.Date.Validate()
}

// Matches reports whether an existing record carries the same user-entered fields.
func (e NewExpense) Matches(x Expense) bool {
	return e.Amount.Equal(x.Amount) &&
		e.Category == x.Category &&
		e.Description == x.Description &&
		e.Date.Equal(x.Date.Time)
}
