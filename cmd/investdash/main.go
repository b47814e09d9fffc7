// Package main запускает HTTP-сервер личного кабинета инвестора.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/config"
	"github.com/mmeshcher/investdash/internal/feed"
	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/handler"
	"github.com/mmeshcher/investdash/internal/metrics"
	"github.com/mmeshcher/investdash/internal/ratelimit"
	"github.com/mmeshcher/investdash/internal/repository"
	"github.com/mmeshcher/investdash/internal/service"
	"github.com/mmeshcher/investdash/internal/session"
)

const (
	purgeInterval   = 10 * time.Minute
	loginWindow     = time.Minute
	shutdownTimeout = 5 * time.Second
)

type sessionStore interface {
	session.Store
	session.Purger
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store sessionStore
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		store = repo
	} else {
		sugar.Warn("DATABASE_URI is not set, sessions are kept in memory")
		store = session.NewMemoryStore()
	}

	if cfg.SessionSecret == "" {
		sugar.Warn("SESSION_SECRET is not set, using a random secret: sessions will not survive a restart")
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.LoginRateLimit, loginWindow, "investdash:login:")
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.LoginRateLimit, loginWindow)
	}

	api := backend.NewClient(cfg.APIBaseURL)
	sessions, err := session.NewManager(store, cfg.SessionSecret, cfg.CookieSecure)
	if err != nil {
		sugar.Fatalw("session manager initialization error", "error", err.Error())
	}

	// Метрики выдаются на отдельном адресе, если он задан, иначе на основном
	// сервере только сотрудникам.
	metricsHandler := metrics.Handler(metrics.NewRegistry())
	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		metricsHandler = nil
	}

	h := handler.NewHandler(handler.Deps{
		Backend:   api,
		Dashboard: service.NewDashboard(api, logger),
		Feed:      feed.NewSource(cfg.LiveFeedURL, logger),
		Sessions:  sessions,
		Guard:     gate.NewGuard(sessions, api, logger),
		Limiter:   limiter,
		Metrics:   metricsHandler,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Периодическое удаление просроченных сессий
	g.Go(func() error {
		session.RunPurge(ctx, store, purgeInterval, logger)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting investdash server", "addr", cfg.RunAddress, "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			sugar.Infow("starting metrics server", "addr", cfg.MetricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("metrics server shutdown error", "error", err.Error())
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
