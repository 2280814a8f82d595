package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/qna/common/id"
	"basegraph.app/qna/common/logger"
	"basegraph.app/qna/common/otel"
	"basegraph.app/qna/core/config"
	"basegraph.app/qna/internal/http/middleware"
	httprouter "basegraph.app/qna/internal/http/router"
	"basegraph.app/qna/internal/lock"
	"basegraph.app/qna/internal/service"
	"basegraph.app/qna/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "qna starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	backends, err := buildBackends(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure storage", "error", err)
		os.Exit(1)
	}

	engine, err := store.NewEngine(backends, cfg.Storage.Timeout)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create store engine", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "storage configured", "backends", engine.BackendNames())

	if _, err := engine.Initialize(ctx); err != nil {
		// Requests still fall back per call; a later save may succeed.
		slog.ErrorContext(ctx, "failed to initialize collection", "error", err)
	}

	locker, closeLocker, err := buildLocker(ctx, cfg.Lock)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure mutation lock", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	services := service.NewServices(engine, locker)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// buildBackends turns the configured order into backends. The remote backend
// sits behind a circuit breaker and mirrors its writes to the local file.
func buildBackends(cfg config.Config) ([]store.Backend, error) {
	local, err := store.NewLocalBackend(cfg.Storage.PrimaryPath)
	if err != nil {
		return nil, err
	}

	backends := make([]store.Backend, 0, len(cfg.Storage.Order))
	for _, name := range cfg.Storage.Order {
		switch name {
		case config.BackendRemote:
			remote, err := store.NewGitLabBackend(store.GitLabOptions{
				BaseURL:     cfg.GitLab.BaseURL,
				Token:       cfg.GitLab.Token,
				Project:     cfg.GitLab.Project,
				Branch:      cfg.GitLab.Branch,
				FilePath:    cfg.GitLab.FilePath,
				AuthorName:  cfg.GitLab.AuthorName,
				AuthorEmail: cfg.GitLab.AuthorEmail,
			}, local)
			if err != nil {
				return nil, err
			}
			backends = append(backends, store.WithBreaker(remote, store.DefaultBreakerOptions()))
		case config.BackendLocal:
			backends = append(backends, local)
		case config.BackendFallback:
			fallback, err := store.NewFallbackBackend(cfg.Storage.FallbackPath)
			if err != nil {
				return nil, err
			}
			backends = append(backends, fallback)
		default:
			return nil, fmt.Errorf("unknown storage backend %q", name)
		}
	}
	return backends, nil
}

func buildLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, func(), error) {
	switch cfg.Mode {
	case config.LockModeLocal:
		slog.InfoContext(ctx, "mutation lock: in-process")
		return lock.NewLocal(), func() {}, nil

	case config.LockModeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.InfoContext(ctx, "mutation lock: redis", "ttl", cfg.TTL)
		return lock.NewRedis(client, cfg.TTL), func() { _ = client.Close() }, nil

	default:
		slog.InfoContext(ctx, "mutation lock disabled, concurrent writes may overwrite each other")
		return lock.NewNoop(), func() {}, nil
	}
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services)

	return router
}
