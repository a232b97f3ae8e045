package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vendor-dashboard-api/internal/cache"
	"vendor-dashboard-api/internal/config"
	"vendor-dashboard-api/internal/database"
	"vendor-dashboard-api/internal/events"
	"vendor-dashboard-api/internal/features"
	"vendor-dashboard-api/internal/handler"
	"vendor-dashboard-api/internal/logging"
	"vendor-dashboard-api/internal/metrics"
	"vendor-dashboard-api/internal/middleware"
	"vendor-dashboard-api/internal/service"
	"vendor-dashboard-api/internal/session"
	"vendor-dashboard-api/internal/source"
	tlsconfig "vendor-dashboard-api/internal/tls"
	"vendor-dashboard-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Env, cfg.Log.Level, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	backend, ping, closeBackend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	recordCache, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	flags := features.Defaults(cfg.Features)
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooks), logger)
	defer eventManager.Shutdown()

	svc := service.NewService(backend, service.Options{
		Cache:    recordCache,
		CacheTTL: cfg.CacheTTL(),
		Events:   eventManager,
		Features: flags,
		Logger:   logger,
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      logger,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.Security.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", session.HeaderVendorID},
		ExposedHeaders:   []string{"Content-Disposition", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.TracingMiddleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			logger.Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.EnableTLS {
		tlsCfg := tlsconfig.Config{CertFile: cfg.Server.CertFile, KeyFile: cfg.Server.KeyFile}
		server.TLSConfig, err = tlsconfig.LoadTLSConfig(tlsCfg)
		if err != nil {
			return fmt.Errorf("failed to load TLS configuration: %w", err)
		}
		if tlsCfg.SelfSigned() {
			logger.Warn("no certificate files provided, using self-signed certificate for development")
		}
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	if server.TLSConfig != nil {
		listener = tls.NewListener(listener, server.TLSConfig)
	}

	logger.Info("starting server",
		"addr", server.Addr,
		"tls", cfg.Server.EnableTLS,
		"source", cfg.Source.Mode,
		"rate_limit", cfg.RateLimit.Enabled,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newBackend selects the record backend. ping reports backend health for
// /health; the remote API is not probed.
func newBackend(cfg *config.Config, logger *slog.Logger) (backend service.Backend, ping func(context.Context) error, closeFn func(), err error) {
	switch cfg.Source.Mode {
	case config.SourceSQLite:
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info("using sqlite record store", "path", cfg.Database.Path)
		return db, db.Ping, func() { db.Close() }, nil
	default:
		client := source.New(source.Config{
			BaseURL:           cfg.Source.BaseURL,
			PaymentsBaseURL:   cfg.Source.PaymentsBaseURL,
			Timeout:           cfg.SourceTimeout(),
			NotificationLimit: cfg.Source.NotificationLimit,
		}, logger)
		logger.Info("using remote vendor API", "base_url", cfg.Source.BaseURL)
		return client, func(context.Context) error { return nil }, func() {}, nil
	}
}

func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, func(), error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewInMemoryCache(), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(pingCtx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.Prefix)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis record cache", "addr", cfg.Cache.RedisAddr)
	return rc, func() { rc.Close() }, nil
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
