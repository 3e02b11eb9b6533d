package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/config"
	"github.com/jonwraymond/agriroute/health"
	"github.com/jonwraymond/agriroute/observe"
	"github.com/jonwraymond/agriroute/orchestrate"
	"github.com/jonwraymond/agriroute/resilience"
	"github.com/jonwraymond/agriroute/server"
	"github.com/jonwraymond/agriroute/upstream"
)

// app owns every long-lived component built from one configuration.
type app struct {
	cfg        *config.Config
	observer   observe.Observer
	logger     *zap.Logger
	durable    cache.Store
	closers    []func() error
	manager    *cache.Manager
	limiters   *resilience.Limiters
	registry   *orchestrate.Registry
	classifier *classify.Classifier
	orch       *orchestrate.Orchestrator
	health     *health.Aggregator
	stopPurge  context.CancelFunc
}

// loadConfig reads path, or returns the defaults when path is empty, and
// resolves secret references.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	resolver, err := cfg.SecretResolver(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resolver.Close() }()
	if err := cfg.Resolve(ctx, resolver); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close(context.WithoutCancel(ctx))
		}
	}()

	if a.observer, err = observe.NewObserver(ctx, cfg.Observe); err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	a.logger = a.observer.Logger().Zap()
	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	metrics := mw.Metrics()

	a.limiters = resilience.NewLimiters(resilience.WithWaitObserver(func(op string, waited time.Duration) {
		metrics.RecordLimiterWait(context.Background(), op, waited)
	}))

	if err = a.openStore(ctx); err != nil {
		return nil, err
	}

	categories, err := cfg.CacheCategories()
	if err != nil {
		return nil, err
	}
	a.manager, err = cache.NewManager(categories, a.durable,
		cache.WithLogger(a.logger),
		cache.WithRecorder(metrics),
		cache.WithWriteTimeout(cfg.Store.WriteTimeout),
		cache.WithCoalesce(cfg.Store.Coalesce),
	)
	if err != nil {
		return nil, err
	}

	bindings, err := a.bindings()
	if err != nil {
		return nil, err
	}
	if a.registry, err = orchestrate.NewRegistry(a.manager, a.limiters, bindings...); err != nil {
		return nil, err
	}
	if a.classifier, err = classify.New(cfg.Signals()); err != nil {
		return nil, err
	}
	a.orch = orchestrate.New(a.classifier, a.registry, orchestrate.Config{
		Timeout:            cfg.Orchestrator.Timeout,
		MaxConcurrency:     cfg.Orchestrator.MaxConcurrency,
		FallbackCategories: cfg.Orchestrator.FallbackCategories,
	}, orchestrate.WithLogger(a.logger), orchestrate.WithMiddleware(mw))

	a.health = health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Health.Timeout})
	if a.durable != nil {
		a.health.Register(health.NewStoreChecker(a.durable))
	}
	a.health.Register(health.NewFallbackChecker(a.manager, health.FallbackCheckerConfig{WarnOccupancy: cfg.Health.WarnOccupancy}))
	a.health.Register(health.NewLimiterChecker(a.limiters))
	a.health.Register(health.NewBreakerChecker(a.registry))

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Kind {
	case config.StoreRedis:
		rc := a.cfg.Store.Redis
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		a.closers = append(a.closers, client.Close)
		a.durable = cache.NewRedisStore(client, rc.Prefix)
	case config.StoreSQLite:
		store, err := cache.NewSQLiteStore(ctx, cache.SQLiteStoreConfig{Path: a.cfg.Store.SQLite.Path})
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.durable = store
		if every := a.cfg.Store.SQLite.PurgeInterval; every > 0 {
			var purgeCtx context.Context
			purgeCtx, a.stopPurge = context.WithCancel(context.WithoutCancel(ctx))
			go a.purgeLoop(purgeCtx, store, every)
		}
	}
	return nil
}

func (a *app) purgeLoop(ctx context.Context, store *cache.SQLiteStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				a.logger.Warn("sqlite purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Debug("sqlite purge", zap.Int64("removed", n))
			}
		}
	}
}

func (a *app) bindings() ([]orchestrate.Binding, error) {
	out := make([]orchestrate.Binding, 0, len(a.cfg.Upstreams))
	for _, up := range a.cfg.Upstreams {
		adapter, err := upstream.NewHTTPAdapter(upstream.HTTPConfig{
			Category: up.Category,
			Endpoint: up.Endpoint,
			Method:   up.Method,
			Headers:  up.Headers,
			Timeout:  up.Timeout,
			Logger:   a.logger,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, orchestrate.Binding{
			Adapter:        adapter,
			RateLimit:      orchestrate.RateLimit{Budget: up.RateLimit.Budget, Window: up.RateLimit.Window},
			MaxConcurrent:  up.MaxConcurrent,
			Retry:          up.ResilienceRetry(),
			Breaker:        up.ResilienceBreaker(),
			AttemptTimeout: up.AttemptTimeout,
		})
	}
	return out, nil
}

func (a *app) server() *server.Server {
	sc := a.cfg.Server
	return server.New(a.orch, server.Config{
		Addr:            sc.Addr,
		RatePerSecond:   sc.RatePerSecond,
		Burst:           sc.Burst,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	},
		server.WithLogger(a.logger),
		server.WithHealth(a.health),
		server.WithGatherer(a.observer.Registry()),
		server.WithClassifier(a.classifier),
		server.WithTracer(a.observer.Tracer()),
	)
}

// close stops background work and releases stores and telemetry.
func (a *app) close(ctx context.Context) error {
	if a.stopPurge != nil {
		a.stopPurge()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if a.observer != nil {
		if err := a.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
