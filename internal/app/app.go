// Package app wires configuration, logging, telemetry, storage, the
// licensing engine, and the HTTP server into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"promogate/internal/config"
	"promogate/internal/infrastructure"
	custommw "promogate/internal/middleware"
	"promogate/internal/promo"
	"promogate/internal/services"
	"promogate/internal/store"
	handlers "promogate/internal/transport/http"
	ws "promogate/internal/websocket"
)

const (
	// Version is the application version reported on the health probe.
	Version = "v1.0.0"
)

// Application is the main application container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Engine        *promo.Engine
	Hub           *ws.Hub
	Service       services.PromoService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
}

// New builds the application with all dependencies wired.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port),
	)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	dataStore, err := store.NewFileStore(filepath.Join(cfg.Paths.DataDir, "engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}
	backupStore, err := store.NewFileStore(cfg.Paths.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup store: %w", err)
	}

	hub := ws.NewHub(logger)

	engine, err := promo.New(promo.Options{
		Store:       dataStore,
		BackupStore: backupStore,
		Logger:      logger,
		Admin: promo.AdminConfig{
			PIN:        cfg.Admin.PIN,
			SessionTTL: cfg.Admin.SessionTTL,
		},
		ValidateThrottle: promo.ThrottleConfig{
			MaxAttempts: cfg.Throttle.ValidateMaxAttempts,
			Window:      cfg.Throttle.ValidateWindow,
			Lockout:     cfg.Throttle.ValidateLockout,
		},
		AdminThrottle: promo.ThrottleConfig{
			MaxAttempts: cfg.Throttle.AdminMaxAttempts,
			Window:      cfg.Throttle.AdminWindow,
			Lockout:     cfg.Throttle.AdminLockout,
		},
		Events: hub,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start licensing engine: %w", err)
	}

	service := services.NewPromoService(engine, promo.SystemClock(), logger)

	application := &Application{
		Config:        cfg,
		Engine:        engine,
		Hub:           hub,
		Service:       service,
		Logger:        logger,
		OTelProviders: otelProviders,
	}
	application.Router = application.setupRouter()
	application.Server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:      application.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return application, nil
}

// setupRouter builds the middleware chain and mounts all handlers.
func (a *Application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.SecurityHeaders)

	rateLimiter := custommw.NewRateLimiter(
		a.Config.Security.RateLimitRPS,
		a.Config.Security.RateLimitBurst,
		a.Logger,
	)
	r.Use(rateLimiter.Handler)

	promoHandler := handlers.NewPromoHandler(a.Service, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Service, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Service, Version)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/", promoHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	r.Get("/healthz", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", a.OTelProviders.PrometheusHTTP)
	r.Get("/ws", a.Hub.ServeWS)

	return r
}

// Run starts the hub and HTTP server, then blocks until the context is
// canceled or a fatal error occurs. Shutdown is graceful within the
// configured timeout.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	a.Hub.Stop()
	a.Engine.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if otelErr := a.OTelProviders.Shutdown(shutdownCtx); otelErr != nil {
		a.Logger.Warn("otel shutdown failed", slog.String("error", otelErr.Error()))
	}
	infrastructure.CloseLogFile()

	return err
}
