package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"photo_backend/internal/app/di"
	"photo_backend/internal/app/router"
	"photo_backend/internal/platform/config"
	"photo_backend/internal/platform/http/handler"
	"photo_backend/internal/platform/logger"
	"photo_backend/internal/platform/metrics"
	platformredis "photo_backend/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Enabled {
		if tmp, err := platformredis.NewRedisClient(ctx, cfg.Redis, log); err != nil {
			log.Warn("Redis unavailable. Running without suggestion cache.", zap.Error(err))
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error("failed to close Redis client", zap.Error(err))
				}
			}()
		}
	}

	m := metrics.New()

	// モデルの読み込みはリクエスト受付前に行う
	scene, err := di.NewSceneInsight(ctx, cfg, rdb, m, log)
	if err != nil {
		return fmt.Errorf("failed to initialize scene insight: %w", err)
	}
	defer func() {
		if err := scene.Close(); err != nil {
			log.Error("failed to release scene insight resources", zap.Error(err))
		}
	}()

	checks := map[string]handler.Check{
		// 起動時に読み込み済みのため常に準備完了
		"classifier": func(context.Context) error { return nil },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	if cfg.Auth.Enabled {
		log.Info("bearer token authentication enabled for /v1")
	} else {
		log.Warn("AUTH_ENABLED is false. /v1 endpoints are public.")
	}

	r := router.NewRouter(router.Deps{
		Logger:         log,
		Metrics:        m,
		Scene:          scene.Handler,
		Readiness:      checks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthEnabled:    cfg.Auth.Enabled,
		JWTSecret:      cfg.Auth.JWTSecret,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
