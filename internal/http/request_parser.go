// This file parses form posts and list queries into view-model inputs.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

// maxFormBytes bounds a posted form body. Larger bodies are rejected whole.
const maxFormBytes = 64 << 10

var (
	errMissingField  = errors.New("missing field parameter")
	errFormTooLarge  = errors.New("request body too large")
	errInvalidFormat = errors.New("invalid request format")
)

// parseForm parses a posted form with its body bounded by maxFormBytes.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errFormTooLarge
		}
		return fmt.Errorf("%w: %v", errInvalidFormat, err)
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines.
// Surrounding whitespace is kept so validation sees what the user typed.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// ParseDraft reads every draft field from a posted form. Missing fields are empty.
func ParseDraft(form url.Values) map[ui.Field]string {
	out := make(map[ui.Field]string, len(ui.Fields))
	for _, f := range ui.Fields {
		out[f] = sanitizeInput(form.Get(string(f)))
	}
	return out
}

// ParseFieldUpdate reads the single field named by the "field" query
// parameter and its posted value.
func ParseFieldUpdate(r *http.Request) (ui.Field, string, error) {
	name := strings.TrimSpace(r.URL.Query().Get("field"))
	if name == "" {
		return "", "", errMissingField
	}
	field := ui.Field(name)
	for _, f := range ui.Fields {
		if f == field {
			return field, sanitizeInput(r.PostForm.Get(name)), nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ui.ErrUnknownField, name)
}

// ParseSelection overlays the category and sort query parameters on current.
// present is false when the query names neither, meaning "render as is".
func ParseSelection(q url.Values, current ui.Selection) (sel ui.Selection, present bool, err error) {
	sel = current
	if q.Has("category") {
		present = true
		sel.Category = strings.TrimSpace(sanitizeInput(q.Get("category")))
	}
	if q.Has("sort") {
		present = true
		order, err := core.ParseSortOrder(q.Get("sort"))
		if err != nil {
			return current, true, err
		}
		sel.Sort = order
	}
	return sel, present, nil
}
