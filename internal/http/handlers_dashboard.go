package http

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/core"
	"kakeibo/internal/forms"
	applog "kakeibo/internal/log"
	"kakeibo/internal/services"
)

const signInPath = "/sign-in"

type weekView struct {
	Period    core.Period
	Week      string
	Prev      string
	Next      string
	IsCurrent bool
	Entries   []core.Entry
	Summary   core.PeriodSummary
}

type formView struct {
	Form       *forms.EntryForm
	Categories []core.Category
	Accounts   []core.Account
	Types      []core.EntryType
	Week       string
}

type dashboardView struct {
	UserID     string
	Week       weekView
	Form       formView
	Accounts   []core.Account
	Categories []core.Category
	SignOut    bool
}

func newWeekView(p, current core.Period, entries []core.Entry) weekView {
	return weekView{
		Period:    p,
		Week:      p.From.String(),
		Prev:      p.Previous().From.String(),
		Next:      p.Next().From.String(),
		IsCurrent: p == current,
		Entries:   entries,
		Summary:   core.Summarize(p, entries),
	}
}

// choices are the select options of the entry form.
type choices struct {
	categories []core.Category
	accounts   []core.Account
}

// fetchDashboard loads categories, accounts and the week's entries
// concurrently. The first failure cancels the other fetches.
func (s *Server) fetchDashboard(ctx context.Context, id core.Identity, week core.Period) (choices, []core.Entry, error) {
	var (
		c       choices
		entries []core.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c.categories, err = s.ledger.ListCategories(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		c.accounts, err = s.ledger.ListAccounts(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.ledger.ListEntriesByPeriod(gctx, id, week)
		return err
	})
	if err := g.Wait(); err != nil {
		return choices{}, nil, err
	}
	return c, entries, nil
}

// fetchChoices loads only the form options.
func (s *Server) fetchChoices(ctx context.Context, id core.Identity) (choices, error) {
	var c choices
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c.categories, err = s.ledger.ListCategories(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		c.accounts, err = s.ledger.ListAccounts(gctx, id)
		return err
	})
	return c, g.Wait()
}

func (s *Server) newFormView(f *forms.EntryForm, c choices, week string) formView {
	return formView{
		Form:       f,
		Categories: c.categories,
		Accounts:   c.accounts,
		Types:      core.EntryTypes,
		Week:       week,
	}
}

// dashboardPage renders the whole page around form.
func (s *Server) dashboardPage(ctx context.Context, id core.Identity, week core.Period, form *forms.EntryForm) ([]byte, error) {
	c, entries, err := s.fetchDashboard(ctx, id, week)
	if err != nil {
		return nil, err
	}
	wv := newWeekView(week, core.WeekOf(s.today()), entries)
	return s.render("dashboard.html", dashboardView{
		UserID:     id.UserID,
		Week:       wv,
		Form:       s.newFormView(form, c, wv.Week),
		Accounts:   c.accounts,
		Categories: c.categories,
		SignOut:    s.sessions != nil,
	})
}

// handleDashboard renders the week view. Signed-out callers are sent to the
// sign-in page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id := s.identity.Identify(r)
	if !id.Authenticated() {
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}

	today := s.today()
	week := ParseWeek(r.URL.Query(), today)
	variant := "page:" + week.From.String() + ":" + today.String()

	if body, ok := s.views.Get(services.DashboardPath, id.UserID, variant); ok {
		writeHTML(w, http.StatusOK, body)
		return
	}
	gen := s.views.Generation(services.DashboardPath)

	body, err := s.dashboardPage(ctx, id, week, forms.NewEntryForm(today))
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}
		logger.Failure(ctx, "Dashboard load failed", err, applog.OpRender,
			applog.FieldUserID, id.UserID, applog.FieldWeek, week.From.String())
		InternalServerError("Could not load the dashboard").Write(w)
		return
	}

	s.views.Set(services.DashboardPath, id.UserID, variant, gen, body)
	writeHTML(w, http.StatusOK, body)
}

// handleWeekEntries renders the totals and entry list of one week. htmx
// reloads it after entry:created.
func (s *Server) handleWeekEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id := s.identity.Identify(r)
	if !id.Authenticated() {
		NewHTMXResponse().
			Status(http.StatusUnauthorized).
			Header("HX-Redirect", signInPath).
			Write(w)
		return
	}

	today := s.today()
	week := ParseWeek(r.URL.Query(), today)
	variant := "entries:" + week.From.String() + ":" + today.String()

	if body, ok := s.views.Get(services.DashboardPath, id.UserID, variant); ok {
		writeHTML(w, http.StatusOK, body)
		return
	}
	gen := s.views.Generation(services.DashboardPath)

	entries, err := s.ledger.ListEntriesByPeriod(ctx, id, week)
	if err != nil {
		logger.Failure(ctx, "Week entries load failed", err, applog.OpList,
			applog.FieldUserID, id.UserID, applog.FieldWeek, week.From.String())
		InternalServerError("Could not load entries").Write(w)
		return
	}

	body, err := s.render("week", newWeekView(week, core.WeekOf(today), entries))
	if err != nil {
		logger.Failure(ctx, "Week entries render failed", err, applog.OpRender)
		InternalServerError("Could not render entries").Write(w)
		return
	}

	s.views.Set(services.DashboardPath, id.UserID, variant, gen, body)
	writeHTML(w, http.StatusOK, body)
}
