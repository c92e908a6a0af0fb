package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/validation"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// deps is everything the HTTP handler needs.
type deps struct {
	store      storage.Store
	sessions   *auth.Sessions
	registry   *prometheus.Registry
	origins    []string
	bcryptCost int
	logger     *slog.Logger
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	revocations, closeRevocations, err := openRevocations(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRevocations()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := newHandler(deps{
		store:    store,
		sessions: auth.NewSessions(auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), revocations),
		registry: registry,
		origins:  cfg.Server.AllowedOrigins,
		logger:   slog.Default(),
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		// h2c for HTTP/2 without TLS (required for Connect streaming and gRPC clients)
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		slog.Warn("Using in-memory storage; data is lost on exit")
		return memory.New(), nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		slog.Info("Storage initialized", "database", cfg.Database.Path)
		return store, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func openRevocations(ctx context.Context, cfg *config.Config) (auth.RevocationList, func(), error) {
	if cfg.Redis.URL == "" {
		return auth.NewMemoryRevocationList(), func() {}, nil
	}

	client, err := auth.ConnectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Token revocations stored in redis")
	return auth.NewRedisRevocationList(client, ""), func() { client.Close() }, nil
}

// newHandler builds the router: Connect services, health and metrics.
func newHandler(d deps) http.Handler {
	validator := validation.New()
	authenticator := auth.NewPasswordAuthenticator(d.store)
	if d.bcryptCost != 0 {
		authenticator.WithCost(d.bcryptCost)
	}
	metrics := middleware.NewMetrics(d.registry)

	opts := connect.WithInterceptors(
		metrics.Interceptor(),
		middleware.LoggingInterceptor(d.logger),
		middleware.RequireAuth(d.sessions, service.PublicProcedures...),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware(d.origins))

	mount := func(path string, h http.Handler) {
		r.Handle(path+"*", h)
	}
	mount(apiconnect.NewAuthServiceHandler(service.NewAuthService(authenticator, d.sessions, d.store, validator, d.logger), opts))
	mount(apiconnect.NewGroupServiceHandler(service.NewGroupService(d.store, validator), opts))
	mount(apiconnect.NewExpenseServiceHandler(service.NewExpenseService(d.store, validator), opts))

	r.Get("/healthz", healthHandler(d.store))
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))

	return r
}

func healthHandler(store storage.Store) http.HandlerFunc {
	type pinger interface {
		Ping(ctx context.Context) error
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				slog.Error("Health check failed", "error", err)
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// exposedHeaders lets browser clients read error metadata. Field headers are
// named per failing field, so they are covered by the wildcard.
var exposedHeaders = []string{
	"Connect-Protocol-Version",
	"Connect-Timeout-Ms",
	service.ExpectedTotalHeader,
	service.ActualTotalHeader,
	"*",
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
				"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms",
			}, ", "))
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(exposedHeaders, ", "))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
