package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/apiclient"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

// fakeAPI records every call and serves canned data.
type fakeAPI struct {
	mu         sync.Mutex
	expenses   []core.Expense
	categories []string
	listErr    error
	catErr     error
	createErr  error
	queries    []core.ExpenseQuery
	created    []core.NewExpense
}

func (f *fakeAPI) ListExpenses(_ context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.Expense
	for _, e := range f.expenses {
		if q.Category == "" || e.Category == q.Category {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAPI) ListCategories(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catErr != nil {
		return nil, f.catErr
	}
	return f.categories, nil
}

func (f *fakeAPI) CreateExpense(_ context.Context, e core.NewExpense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	if f.createErr != nil {
		return core.Expense{}, f.createErr
	}
	exp := core.Expense{
		ID:          "new",
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
	}
	f.expenses = append(f.expenses, exp)
	return exp, nil
}

func (f *fakeAPI) listCalls() []core.ExpenseQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ExpenseQuery(nil), f.queries...)
}

func (f *fakeAPI) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func seededAPI() *fakeAPI {
	return &fakeAPI{
		expenses: []core.Expense{
			{ID: "a1", Amount: decimal.RequireFromString("250.50"), Category: "Food", Description: "Lunch", Date: core.NewDate(2024, time.March, 9)},
			{ID: "b2", Amount: decimal.RequireFromString("100"), Category: "Travel", Description: "Bus", Date: core.NewDate(2024, time.March, 8)},
		},
		categories: []string{"Food", "Travel"},
	}
}

var testToday = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(api ui.API) *Server {
	return NewServer(Config{
		FormOptions: []ui.FormOption{ui.WithClock(func() time.Time { return testToday })},
	}, api, nil)
}

// client carries the session cookie between requests the way a browser does.
type client struct {
	t       *testing.T
	srv     *Server
	cookies []*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	req.RemoteAddr = "192.0.2.10:5000"
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rec, req)
	if cks := rec.Result().Cookies(); len(cks) > 0 {
		c.cookies = cks
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func validDraft() url.Values {
	return url.Values{
		"amount":      {"250.50"},
		"category":    {"Food"},
		"description": {"Dinner"},
		"date":        {"2024-03-10"},
	}
}

func TestIndexRendersPage(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}

	rec := c.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Personal Expense Tracker",
		`id="expense-a1"`,
		`id="expense-b2"`,
		"₹350.50",
		`value="2024-03-10"`,
		`<option value="Food"></option>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	calls := api.listCalls()
	if len(calls) != 1 || calls[0].Category != "" || calls[0].Sort != core.SortDateDesc {
		t.Errorf("initial reads = %+v", calls)
	}
	if len(c.cookies) == 0 || c.cookies[0].Name != sessionCookie {
		t.Errorf("session cookie not set: %v", c.cookies)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
}

func TestIndexShowsFetchError(t *testing.T) {
	api := seededAPI()
	api.listErr = &apiclient.Error{Op: apiclient.OpListExpenses, StatusCode: http.StatusInternalServerError}
	c := &client{t: t, srv: newTestServer(api)}

	body := c.get("/").Body.String()
	if !strings.Contains(body, "Error: Failed to fetch expenses") {
		t.Errorf("error state not rendered:\n%s", body)
	}
	if strings.Contains(body, "expenses-table") {
		t.Error("table rendered despite fetch failure")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}

	if rec := c.get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec := c.get("/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "ready" || payload.Checks["expense_api"] != "ok" {
		t.Errorf("readyz payload = %+v", payload)
	}

	api.catErr = errors.New("connection refused")
	if rec := c.get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with API down = %d", rec.Code)
	}
}

func TestSubmitSuccessRefetchesAndTriggersList(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	rec := c.post("/expenses", validDraft())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := api.createCalls(); got != 1 {
		t.Fatalf("create calls = %d, want 1", got)
	}
	if got := len(api.listCalls()); got != 2 {
		t.Errorf("reads = %d, want mount plus one refetch", got)
	}

	var triggers map[string]any
	if err := json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger: %v", err)
	}
	if _, ok := triggers[EventExpenseCreated]; !ok {
		t.Errorf("HX-Trigger = %v", triggers)
	}

	body := rec.Body.String()
	if !strings.Contains(body, ui.MsgSubmitSucceeded) {
		t.Error("success indicator missing")
	}
	if !strings.Contains(body, `id="amount" name="amount" value=""`) {
		t.Error("draft not reset after success")
	}

	// The list follows the event without another read.
	list := c.get("/ui/expenses")
	if !strings.Contains(list.Body.String(), `id="expense-new"`) {
		t.Error("new expense not listed")
	}
	if got := len(api.listCalls()); got != 2 {
		t.Errorf("plain list render issued a read; reads = %d", got)
	}
}

func TestSubmitInvalidDraftSkipsNetwork(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	draft := validDraft()
	draft.Set("amount", "0")
	draft.Set("category", "   ")

	rec := c.post("/expenses", draft)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if api.createCalls() != 0 {
		t.Error("invalid draft reached the API")
	}
	body := rec.Body.String()
	for _, want := range []string{ui.MsgAmountInvalid, ui.MsgCategoryRequired} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("invalid submit must not trigger events")
	}
}

func TestSubmitSendsLongValuesUnchanged(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	draft := validDraft()
	description := strings.Repeat("क", 200)
	category := strings.Repeat("c", 1200)
	draft.Set("description", description)
	draft.Set("category", category)

	rec := c.post("/expenses", draft)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.created) != 1 {
		t.Fatalf("create calls = %d", len(api.created))
	}
	if got := api.created[0]; got.Description != description || got.Category != category {
		t.Errorf("posted values changed: description %d bytes, category %d bytes", len(got.Description), len(got.Category))
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	draft := validDraft()
	draft.Set("description", strings.Repeat("d", maxFormBytes))

	rec := c.post("/expenses", draft)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Request too large") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if api.createCalls() != 0 {
		t.Error("oversized submit reached the API")
	}
}

func TestSubmitFailureShowsDetailAndKeepsDraft(t *testing.T) {
	api := seededAPI()
	api.createErr = &apiclient.Error{Op: apiclient.OpCreateExpense, StatusCode: http.StatusBadRequest, Detail: "Invalid category"}
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	rec := c.post("/expenses", validDraft())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Error: Invalid category") {
		t.Error("API detail not shown")
	}
	if !strings.Contains(body, `value="250.50"`) || !strings.Contains(body, `value="Dinner"`) {
		t.Error("draft not preserved")
	}
	if got := len(api.listCalls()); got != 1 {
		t.Errorf("failed submit refetched; reads = %d", got)
	}
}

func TestSubmitTransportFailureIsBadGateway(t *testing.T) {
	api := seededAPI()
	api.createErr = &apiclient.Error{Op: apiclient.OpCreateExpense, Err: errors.New("dial tcp: refused")}
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	rec := c.post("/expenses", validDraft())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error: "+ui.MsgSubmitFailed) {
		t.Error("fallback message not shown")
	}
}

func TestFilterChangeIssuesOneRead(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	rec := c.get("/ui/expenses?category=Food&sort=date_asc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	calls := api.listCalls()
	if len(calls) != 2 {
		t.Fatalf("reads = %d, want 2", len(calls))
	}
	if last := calls[1]; last.Category != "Food" || last.Sort != core.SortDateAsc {
		t.Errorf("query = %+v", last)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="expense-a1"`) || strings.Contains(body, `id="expense-b2"`) {
		t.Errorf("filter not applied:\n%s", body)
	}
	if !strings.Contains(body, "₹250.50") {
		t.Error("total does not track the filtered collection")
	}

	// Same selection again: nothing changed, nothing fetched.
	c.get("/ui/expenses?category=Food&sort=date_asc")
	if got := len(api.listCalls()); got != 2 {
		t.Errorf("unchanged selection issued a read; reads = %d", got)
	}
}

func TestEmptyStateMessages(t *testing.T) {
	api := &fakeAPI{categories: []string{}}
	c := &client{t: t, srv: newTestServer(api)}

	if body := c.get("/").Body.String(); !strings.Contains(body, ui.MsgNoExpenses) {
		t.Errorf("unfiltered empty state missing:\n%s", body)
	}
	body := c.get("/ui/expenses?category=Rent").Body.String()
	if !strings.Contains(body, "No expenses found for category") || !strings.Contains(body, "Rent") {
		t.Errorf("filtered empty state missing:\n%s", body)
	}
	if !strings.Contains(body, `<option value="Rent" selected>`) {
		t.Error("active filter not kept in the select")
	}
}

func TestListRejectsInvalidSort(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	if rec := c.get("/ui/expenses?sort=amount"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if got := len(api.listCalls()); got != 1 {
		t.Errorf("invalid sort issued a read; reads = %d", got)
	}
}

func TestFieldUpdateClearsError(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	draft := validDraft()
	draft.Set("amount", "")
	if rec := c.post("/expenses", draft); !strings.Contains(rec.Body.String(), ui.MsgAmountInvalid) {
		t.Fatal("expected an amount error")
	}

	rec := c.post("/ui/form/field?field=amount", url.Values{"amount": {"12"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `<div id="amount-error" class="error-message"></div>` {
		t.Errorf("field error = %q", got)
	}

	if rec := c.post("/ui/form/field?field=colour", url.Values{"colour": {"red"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}
}

func TestFormPartialAfterSuccessWindow(t *testing.T) {
	api := seededAPI()
	c := &client{t: t, srv: newTestServer(api)}
	c.get("/")

	rec := c.get("/ui/form")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), ui.MsgSubmitSucceeded) {
		t.Error("success shown without a submit")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	api := seededAPI()
	srv := newTestServer(api)
	alice := &client{t: t, srv: srv}
	bob := &client{t: t, srv: srv}
	alice.get("/")
	bob.get("/")

	alice.get("/ui/expenses?category=Travel")
	body := bob.get("/ui/expenses").Body.String()
	if !strings.Contains(body, `id="expense-a1"`) {
		t.Error("one session's filter leaked into another")
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	c := &client{t: t, srv: newTestServer(seededAPI())}
	if rec := c.get("/expenses"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /expenses = %d", rec.Code)
	}
}

func TestShutdownDropsSessions(t *testing.T) {
	srv := newTestServer(seededAPI())
	c := &client{t: t, srv: srv}
	c.get("/")
	if srv.sessions.size() != 1 {
		t.Fatalf("sessions = %d", srv.sessions.size())
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.sessions.size() != 0 {
		t.Errorf("sessions after shutdown = %d", srv.sessions.size())
	}
}
