package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

// ExpenseService is the part of services.ExpenseService the handlers use.
type ExpenseService interface {
	CreateExpense(ctx context.Context, n core.NewExpense) (core.Expense, bool, error)
	ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error)
	Categories(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	service ExpenseService
}

func NewHandler(s ExpenseService) *Handler {
	return &Handler{service: s}
}

type createExpenseRequest struct {
	Amount      decimal.NullDecimal `json:"amount"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Date        core.Date           `json:"date"`
}

// expenseResponse renders the amount as a JSON number.
type expenseResponse struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        core.Date   `json:"date"`
	CreatedAt   time.Time   `json:"created_at"`
}

func toResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Amount:      json.Number(e.Amount.String()),
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
	}
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// validationMessages maps domain validation errors to the detail a client shows.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrInvalidAmount, "Amount must be greater than 0"},
	{core.ErrEmptyCategory, "Category is required"},
	{core.ErrEmptyDescription, "Description is required"},
	{core.ErrInvalidDate, "Date must be a valid date (YYYY-MM-DD)"},
}

func validationDetail(err error) (string, bool) {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.msg, true
		}
	}
	return "", false
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Personal Expense Tracker API"})
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.service.Ping(c.Request.Context()); err != nil {
		applog.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "Storage ping failed", applog.FieldError, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateExpense(c *gin.Context) {
	ctx := c.Request.Context()
	logger := applog.FromContext(ctx)

	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if msg, ok := validationDetail(err); ok {
			detail(c, http.StatusUnprocessableEntity, msg)
			return
		}
		detail(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}
	if !req.Amount.Valid {
		detail(c, http.StatusUnprocessableEntity, "Amount must be greater than 0")
		return
	}

	e, created, err := h.service.CreateExpense(ctx, core.NewExpense{
		Amount:      req.Amount.Decimal,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		if msg, ok := validationDetail(err); ok {
			detail(c, http.StatusUnprocessableEntity, msg)
			return
		}
		logger.ErrorContext(ctx, "Failed to create expense",
			applog.NewFields().WithOperation(applog.OpCreate).WithError(err).ToSlice()...)
		detail(c, http.StatusInternalServerError, "Error creating expense: "+err.Error())
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	} else {
		logger.InfoContext(ctx, "Expense created",
			applog.NewFields().WithExpense(e.ID, e.Amount, e.Category).ToSlice()...)
	}
	c.JSON(status, toResponse(e))
}

func (h *Handler) ListExpenses(c *gin.Context) {
	ctx := c.Request.Context()
	q := core.ExpenseQuery{
		Category: c.Query("category"),
		Sort:     core.SortOrder(strings.TrimSpace(c.Query("sort"))),
	}

	items, err := h.service.ListExpenses(ctx, q)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list expenses",
			applog.NewFields().WithOperation(applog.OpList).WithQuery(q.Category, q.Sort.String()).WithError(err).ToSlice()...)
		detail(c, http.StatusInternalServerError, "Error fetching expenses: "+err.Error())
		return
	}
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Categories(c *gin.Context) {
	ctx := c.Request.Context()
	cats, err := h.service.Categories(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list categories",
			applog.NewFields().WithOperation(applog.OpCategories).WithError(err).ToSlice()...)
		detail(c, http.StatusInternalServerError, "Error fetching categories: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, categoriesResponse{Categories: cats})
}
