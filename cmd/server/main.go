// Notebook server - folders, notes and image uploads over a JSON API.
//
// Usage:
//
//	server [--addr :5000] [--memory] [--no-upload] [--test]
//
// See internal/config for the environment variables it reads.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/notebook/internal/api"
	"github.com/kuitang/notebook/internal/config"
	"github.com/kuitang/notebook/internal/db"
	"github.com/kuitang/notebook/internal/notebook"
	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/pgdb"
	"github.com/kuitang/notebook/internal/ratelimit"
	"github.com/kuitang/notebook/internal/store"
	"github.com/kuitang/notebook/internal/testdb"
	"github.com/kuitang/notebook/internal/upload"
	"github.com/rs/cors"
)

func main() {
	if err := run(); err != nil {
		obs.Pkg("main").Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotEnv()
	noUpload, inMemory, addr := config.ParseFlags()

	cfg, err := config.LoadConfig(noUpload, inMemory, addr)
	if err != nil {
		return err
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	logger := obs.Pkg("main")
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gateway, err := upload.NewFromConfig(ctx, cfg.UploadConfig())
	if err != nil {
		return fmt.Errorf("configure uploads: %w", err)
	}
	logger.Info("upload backend selected", "backend", gateway.BackendName())

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(cfg, st, gateway, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore picks the storage backend: in-memory SQLite for --memory,
// PostgreSQL when DATABASE_URL is set, and the SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch {
	case cfg.InMemory:
		s, err := testdb.NewStoreInMemory("notebook")
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.UsePostgres():
		s, err := pgdb.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		key, err := db.DecodeKey(cfg.DatabaseKey)
		if err != nil {
			return nil, err
		}
		s, err := db.Open(ctx, cfg.DatabasePath, key)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// newHandler assembles the API routes and the middleware chain.
// Order, outermost first: CORS, request context, access log, recovery, rate limit.
func newHandler(cfg *config.Config, st store.Store, gateway *upload.Gateway, limiter *ratelimit.RateLimiter) http.Handler {
	mux := http.NewServeMux()
	api.NewHandler(notebook.NewService(st), gateway, st).RegisterRoutes(mux)

	trusted := cfg.TrustedProxyPrefixes()

	var handler http.Handler = mux
	handler = ratelimit.RateLimitMiddleware(limiter, ratelimit.ByClientIP(trusted))(handler)
	handler = api.Recovery(handler)
	handler = obs.AccessLogMiddleware("api", handler)
	handler = obs.RequestContextMiddleware(trusted, handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		ExposedHeaders: []string{"Location", "Retry-After", "X-Request-Id", "X-RateLimit-Remaining"},
	})
	return corsHandler.Handler(handler)
}
