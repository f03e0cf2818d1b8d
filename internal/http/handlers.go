package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/export/xlsx"
	"gastos/internal/log"
	"gastos/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady verifies the store answers within a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "ok"}
	if s.store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleProjected(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	report.Entries = report.Projections()
	report.Summary = services.Summarize(report.Entries)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		From    core.Date    `json:"desde"`
		To      core.Date    `json:"hasta"`
		Entries int          `json:"entradas"`
		Summary core.Summary `json:"totales"`
	}{report.From, report.To, len(report.Entries), report.Summary})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xlsx.FileName(report)))
	if err := xlsx.Write(w, report); err != nil {
		// Headers are already out; the client gets a truncated file.
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write xlsx export",
			log.FieldOperation, log.OpExport, log.FieldError, err)
	}
}

// report parses the window and builds the report, writing the error response
// itself when it returns false.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (core.Report, bool) {
	from, to, err := s.parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return core.Report{}, false
	}

	report, err := s.reports.Build(r.Context(), from, to)
	switch {
	case errors.Is(err, services.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
		return core.Report{}, false
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to build report",
			log.FieldError, err, log.FieldWindowFrom, from.String(), log.FieldWindowTo, to.String())
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return core.Report{}, false
	}
	return report, true
}

// parseWindow reads desde/hasta. A missing bound defaults to the first or
// last day of the current month.
func (s *Server) parseWindow(r *http.Request) (core.Date, core.Date, error) {
	today := core.DateOf(s.now().In(s.loc))
	first := core.NewDate(today.Year(), int(today.Month()), 1)
	from, to := first, first.AddDate(0, 1, -1)

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("desde")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("desde: %w", err)
		}
		from = d
	}
	if v := strings.TrimSpace(q.Get("hasta")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("hasta: %w", err)
		}
		to = d
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
