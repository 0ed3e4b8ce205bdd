package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"finadvisor/internal/core"
	applog "finadvisor/internal/log"
	"finadvisor/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once templates are loaded and the store answers a read
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.app.Store.GetAll(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["backend"] = s.app.BackendName
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	_ = writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	today := s.app.Transactions.Today()
	view := dashboardView{Form: defaultForm(today)}

	if saved := r.URL.Query().Get("saved"); saved != "" {
		if d, err := core.ParseDate(saved); err == nil {
			view.Saved = d.String()
		}
	}
	s.renderDashboard(w, r, http.StatusOK, view)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Parse form error", applog.FieldError, err)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	raw, rec, err := ParseTransactionForm(r.PostForm)
	if err != nil {
		var fe *FormError
		msg := "Invalid input"
		if errors.As(err, &fe) {
			msg = "Invalid " + fe.Field + ": " + fe.Message
		}
		logger.InfoContext(ctx, "Rejected transaction form",
			applog.FieldOperation, applog.OpValidate,
			"error_type", applog.ErrorTypeValidation,
			applog.FieldError, err)
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardView{Form: raw, Error: msg})
		return
	}

	if err := s.app.Transactions.RecordTransaction(ctx, rec); err != nil {
		logError(ctx, "Transaction upsert failed", err, applog.OpUpsert,
			applog.NewFields().WithTransaction(rec.Date.String(), rec.Budget.String(), rec.Expense.String()))
		s.renderDashboard(w, r, http.StatusInternalServerError, dashboardView{Form: raw, Error: "Could not save the entry. Please try again."})
		return
	}

	applog.NewStructuredLogger(logger).LogTransactionRecorded(ctx,
		rec.Date.String(), rec.Budget.String(), rec.Expense.String(), s.app.BackendName)

	http.Redirect(w, r, "/?saved="+url.QueryEscape(rec.Date.String()), http.StatusSeeOther)
}

// renderDashboard fills the view from one store read and writes the page.
// A failed read still renders the form with an error.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, view dashboardView) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	view.Currency = core.CurrencySymbol
	view.ChartDays = services.ChartDays

	ov, err := s.app.Transactions.Overview(ctx)
	if err != nil {
		logError(ctx, "Dashboard read failed", err, applog.OpRead, nil)
		if status == http.StatusOK {
			status = http.StatusInternalServerError
		}
		if view.Error == "" {
			view.Error = "Could not load your entries."
		}
		view.Today = s.app.Transactions.Today().String()
		view.Empty = true
	} else {
		view.Today = ov.Today.String()
		view.Empty = ov.Empty
		view.Recent = recentRows(ov.Recent)
		view.Chart = chartBars(ov.Daily)
		if len(ov.Daily) > 0 {
			view.ChartStart = ov.Daily[0].Date.String()
		}
		view.Windows = []windowView{
			newWindowView(ov.Weekly, s.suggest(ctx, ov.Weekly)),
			newWindowView(ov.Monthly, s.suggest(ctx, ov.Monthly)),
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", view); err != nil {
		logError(ctx, "Dashboard template execution failed", err, applog.OpRender, nil)
	}
}

// suggest returns advice only for positive savings
func (s *Server) suggest(ctx context.Context, ws services.WindowSummary) string {
	if !ws.Savings.IsPositive() {
		return ""
	}
	return s.app.Advisor.GetSuggestions(ctx, ws.Savings)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	table, err := s.app.Transactions.Transactions(r.Context())
	if err != nil {
		logError(r.Context(), "List transactions failed", err, applog.OpRead, nil)
		_ = writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load transactions"})
		return
	}
	_ = writeJSON(w, http.StatusOK, toTransactionJSON(table))
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	ov, err := s.app.Transactions.Overview(r.Context())
	if err != nil {
		logError(r.Context(), "Savings read failed", err, applog.OpRead, nil)
		_ = writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load transactions"})
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{
		core.WeeklyWindow.Name:  ov.Weekly.Savings.String(),
		core.MonthlyWindow.Name: ov.Monthly.Savings.String(),
	})
}

// handleSuggestions writes the advice for one window as plain text. Windows
// without positive savings get 204.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window, err := ParseWindowParam(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sug, err := s.app.Suggest(ctx, window)
	if err != nil {
		logError(ctx, "Suggestion failed", err, applog.OpSuggest, applog.NewFields().WithWindow(window.Name))
		http.Error(w, "could not load transactions", http.StatusInternalServerError)
		return
	}
	if sug.Text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sug.Text))
}
