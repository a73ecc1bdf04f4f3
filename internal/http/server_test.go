package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/auth"
	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/export"
	"kakeibo/internal/forms"
	applog "kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/store/memory"
)

const userHeader = "X-Auth-User"

// Seeded ids: the Cash account is 1, the Food category is 2.
const (
	cashID = "1"
	foodID = "2"
)

func newTestServer(t *testing.T, mutate ...func(*Options)) *Server {
	t.Helper()
	views := cache.NewViews(50, time.Minute)
	st := memory.New(
		[]core.AccountInput{{Name: "Cash"}},
		[]core.CategoryInput{{Name: "Food", Color: core.Red}},
	)
	opts := Options{
		Ledger:             services.NewLedgerService(st, nil, views),
		Identity:           auth.HeaderProvider{Header: userHeader},
		Views:              views,
		Location:           time.UTC,
		RateLimitPerMinute: 1000,
		Logger:             applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
	})
	return s
}

func do(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, r)
	return rec
}

func asUser(r *http.Request, user string) *http.Request {
	r.Header.Set(userHeader, user)
	return r
}

func htmx(r *http.Request) *http.Request {
	r.Header.Set("HX-Request", "true")
	return r
}

func entryForm(amount, description string) url.Values {
	return url.Values{
		"type":        {"expense"},
		"amount":      {amount},
		"date":        {core.Today(time.UTC).String()},
		"categoryId":  {foodID},
		"accountId":   {cashID},
		"description": {description},
	}
}

func postForm(path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func triggers(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &got))
	return got
}

func TestDashboardRedirectsWhenSignedOut(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, signInPath, rec.Header().Get("Location"))
}

func TestDashboardRendersWeek(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(httptest.NewRequest(http.MethodGet, "/?week=2024-06-05", nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "3 Jun to 9 Jun 2024")
	require.Contains(t, body, "/?week=2024-05-27")
	require.Contains(t, body, "/?week=2024-06-10")
	require.Contains(t, body, "Food")
	require.Contains(t, body, "Cash")
	require.Contains(t, body, "No entries this week.")
	require.Contains(t, body, `data-open="false"`)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateEntryHTMXSuccess(t *testing.T) {
	s := newTestServer(t)

	// Fill the view cache so the create has something to invalidate.
	first := do(s, asUser(httptest.NewRequest(http.MethodGet, "/", nil), "alice"))
	require.Contains(t, first.Body.String(), "No entries this week.")

	rec := do(s, htmx(asUser(postForm("/entries", entryForm("12.50", "lunch")), "alice")))
	require.Equal(t, http.StatusOK, rec.Code)

	got := triggers(t, rec)
	for _, name := range []string{EventEntryCreated, EventFormReset, EventDialogClose, EventNotification} {
		require.Contains(t, got, name)
	}
	require.Contains(t, string(got[EventNotification]), forms.MsgCreated)
	require.Contains(t, string(got[EventEntryCreated]), core.WeekOf(core.Today(time.UTC)).From.String())

	// The fresh form is closed and empty.
	require.Contains(t, rec.Body.String(), `id="entry-form"`)
	require.Contains(t, rec.Body.String(), `data-open="false"`)
	require.NotContains(t, rec.Body.String(), "lunch")

	page := do(s, asUser(httptest.NewRequest(http.MethodGet, "/", nil), "alice"))
	require.Contains(t, page.Body.String(), "lunch")
	require.Contains(t, page.Body.String(), "-¥12.50")

	partial := do(s, asUser(httptest.NewRequest(http.MethodGet, "/ui/week-entries", nil), "alice"))
	require.Equal(t, http.StatusOK, partial.Code)
	require.Contains(t, partial.Body.String(), "lunch")
	require.NotContains(t, partial.Body.String(), "<html")
}

func TestCreateEntryHTMXValidationKeepsValues(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, htmx(asUser(postForm("/entries", entryForm("-1", "refund?")), "alice")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "must be greater than 0")
	require.Contains(t, body, "refund?")
	require.Contains(t, body, `value="-1"`)
	require.Contains(t, body, `data-open="true"`)
	require.Contains(t, string(triggers(t, rec)[EventNotification]), forms.MsgValidation)

	entries := do(s, asUser(httptest.NewRequest(http.MethodGet, "/ui/week-entries", nil), "alice"))
	require.Contains(t, entries.Body.String(), "No entries this week.")
}

func TestCreateEntryHTMXUnauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, htmx(postForm("/entries", entryForm("5", ""))))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "none", rec.Header().Get("HX-Reswap"))
	require.Empty(t, rec.Body.String())
	require.Contains(t, string(triggers(t, rec)[EventNotification]), forms.MsgUnauthorized)
}

func TestCreateEntryWithoutHTMX(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(postForm("/entries", entryForm("3", "")), "alice"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/?week="+core.WeekOf(core.Today(time.UTC)).From.String(), rec.Header().Get("Location"))

	rec = do(s, asUser(postForm("/entries", entryForm("abc", "")), "alice"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "<html")
	require.Contains(t, rec.Body.String(), "must be a number")
	require.Contains(t, rec.Body.String(), `data-open="true"`)

	rec = do(s, postForm("/entries", entryForm("3", "")))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, signInPath, rec.Header().Get("Location"))
}

func TestCreateEntryUnknownCategory(t *testing.T) {
	s := newTestServer(t)

	form := entryForm("3", "")
	form.Set("categoryId", "999")
	rec := do(s, htmx(asUser(postForm("/entries", form), "alice")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "does not exist")
}

func TestAPIRequiresIdentity(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/accounts", "/api/categories", "/api/entries"} {
		rec := do(s, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)

		var body apiError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "unauthorized", body.Code)
	}
}

func TestAPIAccountsAndCategories(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(postJSON("/api/accounts", `{"name":"Wallet","initialBalance":20.5}`), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	require.Len(t, accounts, 2)
	require.Equal(t, "Cash", accounts[0]["name"])
	require.Nil(t, accounts[0]["ownerId"])
	require.Equal(t, "Wallet", accounts[1]["name"])
	require.Equal(t, "alice", accounts[1]["ownerId"])
	require.Equal(t, 20.5, accounts[1]["initialBalance"])

	// Other users only see the shared rows.
	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), "bob"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)

	rec = do(s, asUser(postJSON("/api/categories", `{"name":"Books"}`), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	require.Equal(t, "gray", cat["color"])

	rec = do(s, asUser(postJSON("/api/categories", `{"name":"Toys","color":"magenta"}`), "alice"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPIEntries(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(postJSON("/api/entries",
		`{"type":"income","amount":1000,"date":"2024-06-04","categoryId":2,"accountId":1,"description":null}`), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(s, asUser(postJSON("/api/entries",
		`{"type":"expense","amount":12.3,"date":"2024-06-05","categoryId":2,"accountId":1,"description":"tea"}`), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "alice", created["userId"])
	require.Equal(t, 12.3, created["amount"])
	require.Equal(t, "Food", created["category"].(map[string]any)["name"])

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/entries?from=2024-06-01&to=2024-06-30", nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "2024-06-05", entries[0]["date"], "newest first")
	require.Nil(t, entries[1]["description"])

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/entries?limit=1", nil), "alice"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "bob"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Empty(t, entries)
}

func TestAPIEntryValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  string
		path  string
		code  int
		issue string
	}{
		{"zero amount", `{"type":"expense","amount":0,"date":"2024-06-05","categoryId":2,"accountId":1}`, "amount", http.StatusUnprocessableEntity, "must be greater than 0"},
		{"unknown account", `{"type":"expense","amount":1,"date":"2024-06-05","categoryId":2,"accountId":77}`, "accountId", http.StatusUnprocessableEntity, "does not exist"},
		{"long description", `{"type":"expense","amount":1,"date":"2024-06-05","categoryId":2,"accountId":1,"description":"` + strings.Repeat("x", 256) + `"}`, "description", http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, asUser(postJSON("/api/entries", tt.body), "alice"))
			require.Equal(t, tt.code, rec.Code)

			var body apiError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, "validation", body.Code)
			var found bool
			for _, is := range body.Issues {
				if is.Path == tt.path {
					found = true
					if tt.issue != "" {
						require.Equal(t, tt.issue, is.Message)
					}
				}
			}
			require.True(t, found, "no issue for %s: %+v", tt.path, body.Issues)
		})
	}

	rec := do(s, asUser(postJSON("/api/entries", `{"type":`), "alice"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/entries?from=yesterday", nil), "alice"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPIBlankDescriptionIsNull(t *testing.T) {
	s := newTestServer(t)

	for _, desc := range []string{`""`, `"   "`} {
		rec := do(s, asUser(postJSON("/api/entries",
			`{"type":"expense","amount":4,"date":"2024-06-05","categoryId":2,"accountId":1,"description":`+desc+`}`), "alice"))
		require.Equal(t, http.StatusCreated, rec.Code)

		var created map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		require.Contains(t, created, "description")
		require.Nil(t, created["description"], "description %s", desc)
	}
}

func TestAPIFormEncodedBodies(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(postForm("/api/entries", entryForm("12.30", "  ")), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, 12.3, entry["amount"])
	require.Nil(t, entry["description"])

	rec = do(s, asUser(postForm("/api/accounts", url.Values{"name": {"Wallet"}, "initialBalance": {"-20.50"}}), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var account map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.Equal(t, -20.5, account["initialBalance"])

	rec = do(s, asUser(postForm("/api/categories", url.Values{"name": {"Books"}, "color": {"teal"}}), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(s, asUser(postForm("/api/accounts", url.Values{"name": {"Bank"}, "initialBalance": {"lots"}}), "alice"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "initialBalance", body.Issues[0].Path)
}

func TestAPICORSPreflight(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.CORSOrigins = []string{"https://app.example"} })

	r := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(s, r)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExportWeek(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/entries/export.xlsx", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/entries/export.xlsx?week=2024-06-05", nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, export.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "kakeibo_20240603.xlsx")
	require.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestDevSignInFlow(t *testing.T) {
	sessions, err := auth.NewJWTProvider("0123456789abcdef0123", "kakeibo", "kakeibo_session")
	require.NoError(t, err)
	s := newTestServer(t, func(o *Options) {
		o.Identity = sessions
		o.Sessions = sessions
		o.DevLogin = true
	})

	rec := do(s, httptest.NewRequest(http.MethodGet, signInPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="user"`)

	rec = do(s, postForm(signInPath, url.Values{"user": {""}}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(s, postForm(signInPath, url.Values{"user": {"alice"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	rec = do(s, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice")
	require.Contains(t, rec.Body.String(), `action="/sign-out"`)

	rec = do(s, postForm("/sign-out", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSignInDisabledWithoutDevLogin(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, postForm(signInPath, url.Values{"user": {"alice"}}))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, signInPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), `name="user"`)
}

func TestRateLimitOnMutatingRequests(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.RateLimitPerMinute = 1 })

	rec := do(s, asUser(postJSON("/api/categories", `{"name":"One"}`), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, asUser(postJSON("/api/categories", `{"name":"Two"}`), "alice"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "rate_limited", body.Code)

	rec = do(s, asUser(httptest.NewRequest(http.MethodGet, "/api/categories", nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	pingErr := errors.New("database is locked")
	var failing bool
	s := newTestServer(t, func(o *Options) {
		o.Ping = func(context.Context) error {
			if failing {
				return pingErr
			}
			return nil
		}
	})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	failing = true
	rec = do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "database is locked")

	do(s, htmx(asUser(postForm("/entries", entryForm("1", "")), "alice")))
	rec = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "entries_created_total 1")
	require.Contains(t, rec.Body.String(), "# TYPE http_requests_total counter")
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = do(s, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, asUser(httptest.NewRequest(http.MethodGet, "/nope", nil), "alice"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// blockingLedger holds the first week listing after it has read the store,
// so a write can land between the read and the cache fill.
type blockingLedger struct {
	Ledger
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (b *blockingLedger) ListEntriesByPeriod(ctx context.Context, id core.Identity, p core.Period) ([]core.Entry, error) {
	entries, err := b.Ledger.ListEntriesByPeriod(ctx, id, p)
	b.once.Do(func() {
		close(b.loaded)
		<-b.release
	})
	return entries, err
}

func TestWeekEntriesNotCachedAcrossConcurrentCreate(t *testing.T) {
	views := cache.NewViews(50, time.Minute)
	st := memory.New(
		[]core.AccountInput{{Name: "Cash"}},
		[]core.CategoryInput{{Name: "Food", Color: core.Red}},
	)
	svc := services.NewLedgerService(st, nil, views)
	slow := &blockingLedger{Ledger: svc, loaded: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(t, func(o *Options) {
		o.Ledger = slow
		o.Views = views
	})

	const path = "/ui/week-entries?week=2024-06-05"
	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- do(s, asUser(httptest.NewRequest(http.MethodGet, path, nil), "alice"))
	}()

	<-slow.loaded
	desc := "late lunch"
	_, err := svc.CreateEntry(context.Background(), core.NewIdentity("alice"), core.EntryInput{
		Type:        core.Expense,
		Amount:      core.Money{Cents: 1250},
		Date:        core.NewDate(2024, 6, 5),
		Description: &desc,
		CategoryID:  2,
		AccountID:   1,
	})
	require.NoError(t, err)
	close(slow.release)

	first := <-done
	require.Equal(t, http.StatusOK, first.Code)
	require.NotContains(t, first.Body.String(), desc)

	rec := do(s, asUser(httptest.NewRequest(http.MethodGet, path, nil), "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), desc)
}
