package http

import (
	"bytes"
	"fmt"
	"net/http"

	"kakeibo/internal/export"
	applog "kakeibo/internal/log"
)

// handleExport downloads the selected week as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id := s.identity.Identify(r)
	if !id.Authenticated() {
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}

	week := ParseWeek(r.URL.Query(), s.today())
	entries, err := s.ledger.ListEntriesByPeriod(ctx, id, week)
	if err != nil {
		logger.Failure(ctx, "Export load failed", err, applog.OpExport,
			applog.FieldUserID, id.UserID, applog.FieldWeek, week.From.String())
		http.Error(w, "Could not export entries", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWeek(&buf, week, entries); err != nil {
		logger.Failure(ctx, "Export render failed", err, applog.OpExport)
		http.Error(w, "Could not export entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(week)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	logger.Info("Week exported",
		applog.FieldUserID, id.UserID,
		applog.FieldWeek, week.From.String(),
		"entries", len(entries))
}
