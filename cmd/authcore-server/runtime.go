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

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Runtime owns the process-wide resources of the server.
type Runtime struct {
	cfg      Config
	logger   zerolog.Logger
	engine   *authcore.Engine
	server   *http.Server
	notifier *notify.Async
	closers  []func()
}

// NewRuntime connects the stores, builds the engine and the router. On error
// everything opened so far is released.
func NewRuntime(ctx context.Context, cfg Config, logger zerolog.Logger) (_ *Runtime, err error) {
	rt := &Runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.release()
		}
	}()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	rdb, err := rt.connectRedis(ctx)
	if err != nil {
		return nil, err
	}

	builder := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithLogger(logger.With().Str("component", "engine").Logger()).
		WithAuditSink(authcore.NewZerologSink(logger))

	if cfg.Postgres.URL != "" {
		store, err := rt.connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		catalog, err := store.LoadCatalog(ctx, authcore.DefaultCatalog())
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		builder = builder.
			WithAccountStore(store.Accounts).
			WithResetTokenStore(store.ResetTokens).
			WithCatalog(catalog)
	} else {
		logger.Warn().Msg("no postgres url, using in-memory account store")
		builder = builder.
			WithAccountStore(memory.NewAccounts()).
			WithResetTokenStore(memory.NewResetTokens())
	}

	rt.notifier = notify.NewAsync(rt.newNotifier(), notify.AsyncConfig{
		BufferSize:  cfg.Notify.BufferSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	}, logger)
	rt.closers = append(rt.closers, rt.notifier.Close)
	builder = builder.WithNotifier(rt.notifier)

	engine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	rt.engine = engine
	rt.closers = append(rt.closers, engine.Close)

	opts := httpapi.Options{TrustProxy: cfg.TrustProxy}
	if cfg.Log.Requests {
		opts.Requests = middleware.LogRequests(logger.With().Str("component", "http").Logger())
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = prometheus.New(engine).Handler()
	}

	rt.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return rt, nil
}

func (rt *Runtime) connectRedis(ctx context.Context) (redis.UniversalClient, error) {
	if rt.cfg.Redis.URL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		rt.closers = append(rt.closers, mr.Close)
		rt.logger.Warn().Str("addr", mr.Addr()).Msg("no redis url, using in-process miniredis")
		rt.cfg.Redis.URL = "redis://" + mr.Addr()
	}

	opts, err := redis.ParseURL(rt.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	rt.closers = append(rt.closers, func() { _ = rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func (rt *Runtime) connectPostgres(ctx context.Context) (*postgres.Store, error) {
	pool, err := postgres.Connect(ctx, rt.cfg.Postgres.URL, rt.cfg.Postgres.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)

	if rt.cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return postgres.New(pool), nil
}

// newNotifier prefers SMTP and falls back to logging the links.
func (rt *Runtime) newNotifier() authcore.Notifier {
	smtpCfg, err := notify.LoadSMTPConfig()
	if err == nil {
		var smtp *notify.SMTP
		if smtp, err = notify.NewSMTP(smtpCfg); err == nil {
			rt.logger.Info().Str("host", smtpCfg.Host).Msg("notifications via smtp")
			return smtp
		}
	}
	rt.logger.Warn().Err(err).Msg("smtp not configured, notifications are logged")
	return notify.NewLog(rt.logger)
}

// Run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// listener fails, then shuts down gracefully.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer rt.release()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info().Str("addr", rt.server.Addr).Msg("http server started")
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		rt.logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			rt.logger.Error().Err(serveErr).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn().Err(err).Msg("http shutdown")
	}
	return serveErr
}

// release closes resources in reverse order of acquisition.
func (rt *Runtime) release() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	if rt.notifier != nil {
		rt.logger.Info().
			Uint64("notifications_dropped", rt.notifier.Dropped()).
			Uint64("notifications_failed", rt.notifier.Failed()).
			Msg("stopped")
	}
}
