package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/apiclient"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

// readinessTimeout bounds the API probe of /readyz.
const readinessTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the templates and that the expense API answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.api.ListCategories(ctx); err != nil {
		checks["expense_api"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["expense_api"] = "ok"
	}

	checks["sessions"] = s.sessions.size()
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleIndex mounts a fresh root for the session, as a page load would,
// and renders the full page from its first refresh.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	root := s.sessions.reset(w, r)
	// Failures land in the list's error state.
	_ = root.Mount(r.Context())
	s.render(w, r, NewHTMXResponse(), "index.html", newPageView(root.View(), s.cfg.CurrencySymbol))
}

// session returns the request's root, mounting it when the session was new
// or had expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *ui.Root {
	root, fresh := s.sessions.get(w, r)
	if fresh {
		_ = root.Mount(r.Context())
	}
	return root
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	root := s.session(w, r)
	v := root.View()
	s.render(w, r, NewHTMXResponse(), "form", newFormView(v.Form, v.Categories, s.cfg.CurrencySymbol))
}

// handleFieldUpdate applies one edited field and returns its error slot,
// which the edit has cleared.
func (s *Server) handleFieldUpdate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		formErrorResponse(err).Write(w)
		return
	}
	field, value, err := ParseFieldUpdate(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	root := s.session(w, r)
	resp := NewHTMXResponse()
	if err := root.Form.Update(field, value); errors.Is(err, ui.ErrSubmitInProgress) {
		resp.Status(http.StatusConflict)
	}
	s.render(w, r, resp, "field_error", fieldErrorView(root.Form.State(), field))
}

// handleSubmitExpense copies the posted draft into the session's form and
// submits it. The form partial is returned in every outcome.
func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := parseForm(w, r); err != nil {
		logger.WarnContext(ctx, "Parse form error", applog.FieldError, err)
		formErrorResponse(err).Write(w)
		return
	}

	root := s.session(w, r)
	resp := NewHTMXResponse()

	err := s.applyDraft(root.Form, ParseDraft(r.PostForm))
	if err == nil {
		err = root.Form.Submit(ctx)
	}

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Expense submitted", applog.FieldOperation, applog.OpSubmit)
		resp.TriggerExpenseCreated().
			TriggerSuccessNotification(ui.MsgSubmitSucceeded)
	case errors.Is(err, ui.ErrInvalidDraft):
		resp.Status(http.StatusUnprocessableEntity)
	case errors.Is(err, ui.ErrSubmitInProgress):
		resp.Status(http.StatusConflict)
	default:
		resp.Status(submitFailureStatus(err))
		logger.ErrorContext(ctx, "Expense submission failed",
			applog.NewFields().WithOperation(applog.OpSubmit).WithError(err).ToSlice()...)
	}

	v := root.View()
	s.render(w, r, resp, "form", newFormView(v.Form, v.Categories, s.cfg.CurrencySymbol))
}

// formErrorResponse rejects an unreadable or oversized form post. Nothing is
// applied to the draft, so no posted value is ever shortened.
func formErrorResponse(err error) *HTMXResponseBuilder {
	if errors.Is(err, errFormTooLarge) {
		return BadRequestError("Request too large")
	}
	return BadRequestError("Invalid request format")
}

func (s *Server) applyDraft(form *ui.Form, draft map[ui.Field]string) error {
	for _, f := range ui.Fields {
		if err := form.Update(f, draft[f]); err != nil {
			return err
		}
	}
	return nil
}

// submitFailureStatus maps an API rejection to 422 and anything else to 502.
func submitFailureStatus(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// handleList applies the category and sort parameters, if any, and renders
// the list partial. Without parameters it renders the current state, which
// is how the list follows an expense:created event.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	root := s.session(w, r)

	sel, present, err := ParseSelection(r.URL.Query(), root.List.Selection())
	if err != nil {
		BadRequestError("Invalid sort order").Write(w)
		return
	}
	if present {
		root.List.Apply(r.Context(), sel)
	}
	s.render(w, r, NewHTMXResponse(), "list", newListView(root.View().List))
}
