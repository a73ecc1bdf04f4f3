package http

import (
	"context"
	"net/http"
	"net/url"

	"kakeibo/internal/core"
	"kakeibo/internal/forms"
	applog "kakeibo/internal/log"
	"kakeibo/internal/schema"
)

// handleCreateEntry submits the entry form.
//
// With htmx, success answers with a fresh form and the entry:created,
// form:reset, dialog:close and show-notification events. A validation
// failure answers 422 with the form re-rendered around the posted values.
// Unauthorized (401) and unknown (500) failures only raise a notification
// and leave the client's form untouched.
//
// Without htmx, success redirects to the entry's week and a validation
// failure renders the whole page with the dialog open.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := s.identity.Identify(r)
	today := s.today()
	form := forms.Restore(today, forms.ValuesFromRecord(sanitizedRecord(r.PostForm)))

	entry, err := form.Submit(ctx, s.ledger, id)
	switch form.LastKind {
	case core.KindNone:
		s.appMetrics.entriesCreated.Add(1)
		logger.Info("Entry created",
			applog.NewFields().
				WithUser(id.UserID).
				WithEntry(entry.ID, string(entry.Type), entry.Amount.Cents, entry.CategoryID, entry.AccountID).
				ToSlice()...)
		s.entryCreated(ctx, w, r, id, form, entry)
	case core.KindValidation:
		logger.Info("Entry form rejected", applog.FieldUserID, id.UserID, applog.FieldError, err)
		s.entryInvalid(ctx, w, r, id, form)
	case core.KindUnauthorized:
		if !IsHTMX(r) {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}
		notifyOnly(w, http.StatusUnauthorized, form.Notice)
	default:
		logger.Failure(ctx, "Entry creation failed", err, applog.OpCreate,
			applog.FieldUserID, id.UserID, applog.FieldErrorKind, form.LastKind.String())
		if !IsHTMX(r) {
			InternalServerError(form.Notice.Message).Write(w)
			return
		}
		notifyOnly(w, http.StatusInternalServerError, form.Notice)
	}
}

func (s *Server) entryCreated(ctx context.Context, w http.ResponseWriter, r *http.Request, id core.Identity, form *forms.EntryForm, entry core.Entry) {
	week := core.WeekOf(entry.Date).From.String()
	if !IsHTMX(r) {
		http.Redirect(w, r, "/?week="+url.QueryEscape(week), http.StatusSeeOther)
		return
	}

	resp := NewHTMXResponse().
		TriggerEntryCreated(entry.ID, week).
		TriggerFormReset().
		TriggerDialogClose().
		TriggerSuccessNotification(form.Notice.Message)

	c, err := s.fetchChoices(ctx, id)
	if err == nil {
		var body []byte
		body, err = s.render("entry_form", s.newFormView(form, c, week))
		if err == nil {
			resp.BodyHTML(body).Write(w)
			return
		}
	}
	// The entry is stored; the client keeps its current form.
	applog.FromContext(ctx).Failure(ctx, "Fresh entry form unavailable", err, applog.OpRender)
	resp.Header("HX-Reswap", "none").Write(w)
}

func (s *Server) entryInvalid(ctx context.Context, w http.ResponseWriter, r *http.Request, id core.Identity, form *forms.EntryForm) {
	logger := applog.FromContext(ctx)
	today := s.today()

	if !IsHTMX(r) {
		week := core.WeekOf(today)
		if d, err := core.ParseDate(form.Values.Date); err == nil {
			week = core.WeekOf(d)
		}
		body, err := s.dashboardPage(ctx, id, week, form)
		if err != nil {
			logger.Failure(ctx, "Dashboard load failed", err, applog.OpRender)
			InternalServerError(forms.MsgUnknown).Write(w)
			return
		}
		writeHTML(w, http.StatusUnprocessableEntity, body)
		return
	}

	resp := NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		TriggerErrorNotification(form.Notice.Message)

	c, err := s.fetchChoices(ctx, id)
	if err == nil {
		var body []byte
		body, err = s.render("entry_form", s.newFormView(form, c, core.WeekOf(today).From.String()))
		if err == nil {
			resp.BodyHTML(body).Write(w)
			return
		}
	}
	logger.Failure(ctx, "Entry form re-render failed", err, applog.OpRender)
	resp.Header("HX-Reswap", "none").Write(w)
}

// notifyOnly answers an htmx request with a notification and no swap.
func notifyOnly(w http.ResponseWriter, status int, n *forms.Notification) {
	resp := NewHTMXResponse().Status(status).Header("HX-Reswap", "none")
	if n != nil {
		resp.TriggerNotification(NotificationType(n.Kind), n.Message, 5000)
	}
	resp.Write(w)
}

func sanitizedRecord(form url.Values) schema.Record {
	rec := schema.FormRecord(form)
	for k, v := range rec {
		if s, ok := v.(string); ok {
			rec[k] = sanitizeInput(s)
		}
	}
	return rec
}
