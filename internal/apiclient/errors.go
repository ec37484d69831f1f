package apiclient

import (
	"fmt"
	"net/http"
)

// Op names the API call that failed.
type Op string

const (
	OpListExpenses   Op = "list expenses"
	OpListCategories Op = "list categories"
	OpCreateExpense  Op = "create expense"
)

// fallback is shown to the user when the server sent no detail.
func (o Op) fallback() string {
	switch o {
	case OpListExpenses:
		return "Failed to fetch expenses"
	case OpListCategories:
		return "Failed to fetch categories"
	case OpCreateExpense:
		return "Failed to create expense"
	default:
		return "Request failed"
	}
}

// Error is returned for every failed call. StatusCode is zero when the
// request never produced a response.
type Error struct {
	Op         Op
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %d %s: %v", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	default:
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text a view shows for this failure: the server's
// detail when present, otherwise a generic message for the operation.
func (e *Error) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Op.fallback()
}
