package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Lunch", "Lunch"},
		{"keeps surrounding spaces", "  Lunch ", "  Lunch "},
		{"drops control chars", "Lu\x00nch\x07", "Lunch"},
		{"keeps tab and newline", "a\tb\nc", "a\tb\nc"},
		{"keeps long input whole", strings.Repeat("x", 5000), strings.Repeat("x", 5000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.input); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDraft(t *testing.T) {
	got := ParseDraft(url.Values{
		"amount":      {"250.50"},
		"category":    {"Food"},
		"description": {"Lunch\x00"},
		"extra":       {"ignored"},
	})
	if len(got) != len(ui.Fields) {
		t.Fatalf("expected every field, got %v", got)
	}
	if got[ui.FieldAmount] != "250.50" || got[ui.FieldDescription] != "Lunch" || got[ui.FieldDate] != "" {
		t.Errorf("unexpected draft %v", got)
	}
}

func TestParseDraftKeepsLongValues(t *testing.T) {
	category := strings.Repeat("c", 1200)
	description := strings.Repeat("क", 3000)
	got := ParseDraft(url.Values{"category": {category}, "description": {description}})
	if got[ui.FieldCategory] != category {
		t.Errorf("category changed: posted %d bytes, parsed %d", len(category), len(got[ui.FieldCategory]))
	}
	if got[ui.FieldDescription] != description {
		t.Errorf("description changed: posted %d bytes, parsed %d", len(description), len(got[ui.FieldDescription]))
	}
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"within bound", "description=" + strings.Repeat("d", 4000), nil},
		{"oversized", "description=" + strings.Repeat("d", maxFormBytes), errFormTooLarge},
		{"bad escape", "amount=%zz", errInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			err := parseForm(httptest.NewRecorder(), r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseForm() err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && len(r.PostForm.Get("description")) != 4000 {
				t.Errorf("description length = %d", len(r.PostForm.Get("description")))
			}
		})
	}
}

func TestParseFieldUpdate(t *testing.T) {
	newReq := func(target, body string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		return r
	}

	field, value, err := ParseFieldUpdate(newReq("/ui/form/field?field=category", "category=Travel&amount=1"))
	if err != nil || field != ui.FieldCategory || value != "Travel" {
		t.Errorf("got %q %q %v", field, value, err)
	}

	if _, _, err := ParseFieldUpdate(newReq("/ui/form/field", "category=x")); !errors.Is(err, errMissingField) {
		t.Errorf("expected errMissingField, got %v", err)
	}
	if _, _, err := ParseFieldUpdate(newReq("/ui/form/field?field=id", "id=1")); !errors.Is(err, ui.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestParseSelection(t *testing.T) {
	current := ui.Selection{Category: "Food", Sort: core.SortDateDesc}
	tests := []struct {
		name        string
		query       string
		want        ui.Selection
		wantPresent bool
		wantErr     bool
	}{
		{"empty query keeps selection", "", current, false, false},
		{"clear filter", "category=", ui.Selection{Sort: core.SortDateDesc}, true, false},
		{"change sort", "sort=date_asc", ui.Selection{Category: "Food", Sort: core.SortDateAsc}, true, false},
		{"both", "category=Travel&sort=date_desc", ui.Selection{Category: "Travel", Sort: core.SortDateDesc}, true, false},
		{"invalid sort", "sort=amount", current, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, present, err := ParseSelection(q, current)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || present != tt.wantPresent {
				t.Errorf("got %+v present=%v, want %+v present=%v", got, present, tt.want, tt.wantPresent)
			}
		})
	}
}
