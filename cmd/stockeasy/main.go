package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockeasy/stockeasy/internal/app"
	"github.com/stockeasy/stockeasy/internal/auth"
	"github.com/stockeasy/stockeasy/internal/dashboard"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/platform/cache"
	"github.com/stockeasy/stockeasy/internal/product"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/shell"
	"github.com/stockeasy/stockeasy/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	client, closeBackend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect backend", slog.String("driver", cfg.DataDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeBackend()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "stockeasy_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	guard := shared.NewSubmitGuard(redisClient, 10*time.Minute)
	metrics := observability.NewMetrics()

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := auth.NewSessionContext(client.Auth())
	sessions.OnSessionChange(func(ctx context.Context, ev auth.SessionEvent) {
		logger.InfoContext(ctx, "session changed", slog.String("user_id", ev.UserID), slog.String("state", ev.State.String()))
	})

	authHandler := auth.NewHandler(logger, sessions, templates, sessionManager, csrfManager, guard, metrics)
	dashboardHandler := dashboard.NewHandler(logger, client, templates, csrfManager, metrics)
	inventoryHandler := product.NewHandler(logger, product.Inventory, client, templates, csrfManager, guard, metrics, cfg.ActivityLogLimit)
	salesHandler := product.NewHandler(logger, product.Sales, client, templates, csrfManager, guard, metrics, cfg.ActivityLogLimit)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Shell:            shell.New(logger, sessions),
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		InventoryHandler: inventoryHandler,
		SalesHandler:     salesHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("driver", cfg.DataDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
