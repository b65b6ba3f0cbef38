package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tasks-api/api"
	"tasks-api/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

// newRootCommand serves the API by default. Configuration comes from the
// environment for every subcommand.
func newRootCommand() *cli.Command {
	serveAction := func(ctx context.Context, _ *cli.Command) error {
		return withStore(ctx, serve)
	}
	return &cli.Command{
		Name:   "tasks-api",
		Usage:  "Task CRUD service backed by a JSON document",
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the task API",
				Action: serveAction,
			},
			{
				Name:  "init",
				Usage: "Create an empty task document if none exists",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withStore(ctx, initStorage)
				},
			},
		},
	}
}

type storeFunc func(ctx context.Context, store taskStore, cfg config, logger *log.Logger) error

// withStore loads the configuration, opens the configured backend and hands
// both to fn. The backend is closed when fn returns.
func withStore(ctx context.Context, fn storeFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := newLogger(cfg)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStore()
	return fn(ctx, store, cfg, logger)
}

func newLogger(cfg config) *log.Logger {
	logger := log.New()
	if cfg.debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.jsonLogs {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

func serve(ctx context.Context, store taskStore, cfg config, logger *log.Logger) error {
	if cfg.tracing {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.WithError(err).Warn("tracer shutdown")
			}
		}()
	}

	if _, err := store.LoadAll(ctx); err != nil {
		logger.WithError(err).Warn("task document is not readable; requests will fail until it is fixed")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))

	api.Register(e, store, cfg.idStrategy, logger)
	if cfg.pprof {
		pprof.Register(e)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server is listening on %s, backend: %s, id strategy: %s", cfg.listenAddr, cfg.backend, cfg.idStrategy)
		errCh <- e.Start(cfg.listenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

func openStore(ctx context.Context, cfg config, logger *log.Logger) (taskStore, func(), error) {
	switch cfg.backend {
	case backendRedis:
		rc := redis.NewClient(redisOptions(cfg.redisConn))
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, err
		}
		closeFn := func() {
			if err := rc.Close(); err != nil {
				logger.WithError(err).Warn("redis close")
			}
		}
		return storage.NewRedis(rc, cfg.redisKey), closeFn, nil
	case backendMemory:
		return storage.NewMemory(), func() {}, nil
	default:
		fs := storage.NewFile(cfg.tasksFile,
			storage.WithLockRetryDelay(cfg.lockRetryDelay),
			storage.WithLogger(logger),
		)
		return fs, func() {}, nil
	}
}
