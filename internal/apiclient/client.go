// Package apiclient talks to the expense REST API.
//
// Each call is a single attempt: no retry, no backoff and no client-side
// timeout. Callers bound a call through its context.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *applog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     applog.Wrap(nil, applog.ComponentClient),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type createRequest struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        core.Date   `json:"date"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// ListExpenses fetches the expense collection narrowed and ordered by q.
// An empty category or sort is omitted from the query string.
func (c *Client) ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort.String())
	}

	var out []core.Expense
	if err := c.do(ctx, OpListExpenses, http.MethodGet, "/expenses", params, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

// ListCategories fetches the distinct categories known to the server.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var out categoriesResponse
	if err := c.do(ctx, OpListCategories, http.MethodGet, "/expenses/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Categories == nil {
		return []string{}, nil
	}
	return out.Categories, nil
}

// CreateExpense posts a new expense and returns the record the server stored.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	body := createRequest{
		Amount:      json.Number(e.Amount.String()),
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
	}
	var out core.Expense
	if err := c.do(ctx, OpCreateExpense, http.MethodPost, "/expenses", nil, body, &out); err != nil {
		return core.Expense{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op Op, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.logger.DebugContext(ctx, "API call failed",
			applog.FieldOperation, string(op),
			applog.FieldStatusCode, resp.StatusCode,
			"detail", apiErr.Detail)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readDetail returns the string form of a {"detail": "..."} payload, or
// empty when the body is absent, not JSON, or carries a structured detail.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
