package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cache"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	applog "kakeibo/internal/log"
	"kakeibo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	beCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).CreateBackend(ctx, beCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	views := cache.NewViews(cfg.ViewCacheSize, cfg.ViewCacheTTL)
	ledger := services.NewLedgerService(result.Ledger, result.Publisher, views)

	identity, sessions, err := newIdentity(cfg)
	if err != nil {
		logger.Error("Failed to initialize identity provider", "error", err, "mode", cfg.AuthMode)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Ledger:             ledger,
		Identity:           identity,
		Sessions:           sessions,
		SessionTTL:         cfg.SessionTTL,
		DevLogin:           cfg.DevLogin,
		Views:              views,
		TrustedProxies:     cfg.TrustedProxies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigins:        cfg.CORSAllowedOrigins,
		CurrencySymbol:     cfg.CurrencySymbol,
		Ping:               result.Ping,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Starting kakeibo server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth_mode", cfg.AuthMode,
			"mirror_enabled", result.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			stop()
		}
	}()

	<-ctx.Done()
	cli.Shutdown(logger.Logger, 30*time.Second, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), ledger.Close())
	})
}

// newIdentity returns the request identity provider and, in jwt mode, the
// provider that issues session cookies.
func newIdentity(cfg *config.Config) (auth.Provider, *auth.JWTProvider, error) {
	switch cfg.AuthMode {
	case "jwt":
		p, err := auth.NewJWTProvider(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthCookie)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "header":
		return auth.HeaderProvider{Header: cfg.AuthHeader}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
