package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"openserver-hq/guardrails/pkg/config"
	"openserver-hq/guardrails/pkg/moderation"
	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/chain"
	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/language"
	"openserver-hq/guardrails/pkg/moderation/mitigation"
	"openserver-hq/guardrails/pkg/reload"
	"openserver-hq/guardrails/pkg/remote"
	"openserver-hq/guardrails/pkg/telemetry/health"
	"openserver-hq/guardrails/pkg/telemetry/logging"
	"openserver-hq/guardrails/pkg/telemetry/metrics"
	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// Options adjust how New builds the application.
type Options struct {
	// ConfigPath enables policy reload from this file. Empty disables
	// reloading.
	ConfigPath string

	// Logger overrides the logger built from the telemetry configuration.
	Logger *slog.Logger

	// LogWriter receives logs when Logger is nil. Defaults to stderr.
	LogWriter io.Writer

	// TracingOptions are passed to the tracer, typically an exporting span
	// processor.
	TracingOptions []tracing.Option
}

// App holds the assembled components.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Tracer       *tracing.Tracer
	Metrics      *metrics.Collector
	Breakers     *breaker.Registry
	Orchestrator *moderation.Orchestrator
	Health       *health.Checker
	Reloader     *reload.Reloader

	configPath string
	closers    []io.Closer
}

// New builds the application from cfg. cfg must already be validated.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: opts.Logger, configPath: opts.ConfigPath}

	if a.Logger == nil {
		lc := cfg.LoggingConfig()
		lc.Writer = opts.LogWriter
		logger, err := logging.New(lc)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		a.Logger = logger
	}

	tracer, err := tracing.New(cfg.TracingConfig(), opts.TracingOptions...)
	if err != nil {
		return nil, fmt.Errorf("build tracer: %w", err)
	}
	a.Tracer = tracer

	a.Metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	a.Breakers = breaker.NewRegistry(
		breaker.WithObserver(a.Metrics),
		breaker.WithLogger(a.Logger),
	)

	engines, err := engine.Build(cfg.EngineDescriptors(), engine.Deps{
		Heuristic: cfg.HeuristicConfig(),
		Breakers:  a.Breakers,
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build engines: %w", err)
	}
	a.Metrics.TrackBreakers(a.Breakers.Snapshot())

	planner, err := mitigation.New(cfg.PlannerConfig())
	if err != nil {
		return nil, fmt.Errorf("build mitigation planner: %w", err)
	}

	policy, err := moderation.NewPolicy(cfg.Profiles, cfg.Thresholds())
	if err != nil {
		return nil, fmt.Errorf("build policy: %w", err)
	}

	a.Health = health.New(0)
	resolver := language.NewResolver(cfg.ResolverConfig(), a.translator(), a.Logger)

	a.Orchestrator, err = moderation.New(resolver, chain.New(engines, cfg.Moderation.ChainConcurrency, a.Logger), planner, policy, moderation.Options{
		RequestTimeout:      cfg.Moderation.RequestTimeout,
		MaxTextRunes:        cfg.Moderation.MaxTextRunes,
		MitigationMinAction: cfg.MitigationMinAction(),
		Logger:              a.Logger,
		Observer:            a.Metrics,
		Tracer:              a.Tracer,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	a.Health.RegisterCheck("policy", health.PolicyCheck(func() bool { return a.Orchestrator.Policy() != nil }))
	a.Health.RegisterCheck("engines", health.BreakerCheck(a.Breakers.Snapshot))

	if opts.ConfigPath != "" {
		a.Reloader = reload.NewReloader(opts.ConfigPath, a.Orchestrator,
			reload.WithObserver(a.Metrics),
			reload.WithLogger(a.Logger),
		)
	}

	a.Logger.Info("guardrails assembled",
		"engines", a.Orchestrator.Engines(),
		"translation", cfg.Locale.Translation.Enabled,
		"cache_backend", cfg.Locale.Translation.Cache.Backend,
		"tracing", a.Tracer.Enabled(),
	)
	return a, nil
}

// translator returns the translation collaborator, or nil when translation
// is disabled.
func (a *App) translator() language.Translator {
	t := a.Config.Locale.Translation
	if !t.Enabled {
		return nil
	}

	client := remote.NewClient(remote.Config{Name: "translation", Timeout: t.Timeout}, a.Logger)
	var next language.Translator = language.NewHTTPTranslator(t.Endpoint, t.APIKey, client)

	var cache language.Cache
	switch t.Cache.Backend {
	case "memory":
		mem := language.NewMemoryCache(t.Cache.TTL, t.Cache.MaxEntries)
		a.Metrics.TrackCacheSize(mem.Len)
		cache = mem
	case "redis":
		rc := language.NewRedisCache(language.RedisOptions{
			Address:   t.Cache.Redis.Address,
			Password:  t.Cache.Redis.Password,
			DB:        t.Cache.Redis.DB,
			KeyPrefix: t.Cache.Redis.KeyPrefix,
			TTL:       t.Cache.TTL,
		})
		a.closers = append(a.closers, rc)
		a.Health.RegisterCheck("translation_cache", health.PingCheck(rc, true))
		cache = rc
	default:
		return next
	}

	return language.NewCachingTranslator(next, cache, a.Logger).WithObserver(a.Metrics)
}

// RunReload runs the configured reload triggers until ctx is done. It
// returns immediately when reloading is disabled.
func (a *App) RunReload(ctx context.Context) error {
	rc := a.Config.Reload
	if a.Reloader == nil || (!rc.Watch && rc.Schedule == "") {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	if rc.Watch {
		fw, err := reload.NewFileWatcher(a.configPath, rc.Debounce, a.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return fw.Watch(ctx, func() { _ = a.Reloader.Reload(ctx, reload.TriggerWatch) })
		})
	}

	if rc.Schedule != "" {
		sched := reload.NewScheduler(rc.Schedule, a.Logger)
		if err := sched.Start(ctx, func(ctx context.Context) {
			_ = a.Reloader.Reload(ctx, reload.TriggerSchedule)
		}); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}

	return g.Wait()
}

// Close flushes the tracer and closes backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.Tracer != nil {
		errs = append(errs, a.Tracer.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
