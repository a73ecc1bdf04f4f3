package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"kakeibo/internal/auth"
	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/store"
	appweb "kakeibo/web"
)

// Ledger is the service surface the handlers use.
type Ledger interface {
	ListAccounts(ctx context.Context, id core.Identity) ([]core.Account, error)
	ListCategories(ctx context.Context, id core.Identity) ([]core.Category, error)
	ListEntriesByPeriod(ctx context.Context, id core.Identity, p core.Period) ([]core.Entry, error)
	QueryEntries(ctx context.Context, id core.Identity, q store.EntryQuery) ([]core.Entry, error)
	CreateEntry(ctx context.Context, id core.Identity, in core.EntryInput) (core.Entry, error)
	CreateAccount(ctx context.Context, id core.Identity, in core.AccountInput) (core.Account, error)
	CreateCategory(ctx context.Context, id core.Identity, in core.CategoryInput) (core.Category, error)
}

// Options configures a Server.
type Options struct {
	Addr     string
	Ledger   Ledger
	Identity auth.Provider

	// Sessions issues and clears the session cookie. It is nil when the
	// identity comes from a proxy header.
	Sessions   *auth.JWTProvider
	SessionTTL time.Duration
	DevLogin   bool

	// Views must be the same cache the ledger service revalidates.
	Views *cache.Views

	TrustedProxies     []string
	RateLimitPerMinute int
	CORSOrigins        []string

	CurrencySymbol string
	Location       *time.Location

	// Ping checks the storage backend for /readyz. Nil means always ready.
	Ping func(context.Context) error

	Logger *applog.Logger
}

type appMetrics struct {
	uptime         time.Time
	entriesCreated atomic.Int64
	renderFailures atomic.Int64
}

type Server struct {
	http.Server
	templates *template.Template

	ledger     Ledger
	identity   auth.Provider
	sessions   *auth.JWTProvider
	sessionTTL time.Duration
	devLogin   bool

	views  *cache.Views
	caches *cache.Manager

	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	rateLimiter      *ratelimit.Limiter
	cors             *cors.Cors

	currency string
	loc      *time.Location
	ping     func(context.Context) error
	logger   *applog.Logger

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, errors.New("new server: ledger is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("new server: identity provider is required")
	}
	if opts.Views == nil {
		opts.Views = cache.NewViews(200, 5*time.Minute)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "¥"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}

	t, err := template.New("").Funcs(templateFuncs(opts.CurrencySymbol)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		templates:        t,
		ledger:           opts.Ledger,
		identity:         opts.Identity,
		sessions:         opts.Sessions,
		sessionTTL:       opts.SessionTTL,
		devLogin:         opts.DevLogin,
		views:            opts.Views,
		caches:           cache.NewManager(),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger.Logger),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		cors:             newCORS(opts.CORSOrigins),
		currency:         opts.CurrencySymbol,
		loc:              opts.Location,
		ping:             opts.Ping,
		logger:           logger,
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	s.caches.Register(s.views)
	s.caches.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           600,
	})
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /ui/week-entries", s.handleWeekEntries)
	mux.HandleFunc("POST /entries", s.handleCreateEntry)
	mux.HandleFunc("GET /entries/export.xlsx", s.handleExport)

	mux.HandleFunc("GET /sign-in", s.handleSignInPage)
	mux.HandleFunc("POST /sign-in", s.handleSignIn)
	mux.HandleFunc("POST /sign-out", s.handleSignOut)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/accounts", s.handleAPIListAccounts)
	api.HandleFunc("POST /api/accounts", s.handleAPICreateAccount)
	api.HandleFunc("GET /api/categories", s.handleAPIListCategories)
	api.HandleFunc("POST /api/categories", s.handleAPICreateCategory)
	api.HandleFunc("GET /api/entries", s.handleAPIListEntries)
	api.HandleFunc("POST /api/entries", s.handleAPICreateEntry)
	mux.Handle("/api/", s.cors.Handler(api))

	return mux
}

// middleware wraps h, outermost first: trace, request logger, detection,
// security headers, rate limiting of mutating requests.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.Mutating, s.handleRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).Warn("Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))

	switch {
	case isAPI(r):
		writeJSON(w, http.StatusTooManyRequests, apiError{Code: "rate_limited", Message: "Too many requests"})
	case IsHTMX(r):
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			Header("HX-Reswap", "none").
			TriggerErrorNotification("Too many requests, try again in a minute.").
			Write(w)
	default:
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	}
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) today() core.Date {
	return core.Today(s.loc)
}

// render executes a named template into memory so a failure never leaves a
// half-written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.appMetrics.renderFailures.Add(1)
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
