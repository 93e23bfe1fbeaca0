package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/abhisek/traverse/internal/config"
	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/llm"
	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/logger"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/store"
)

// deps holds everything a command needs. close releases it in reverse order.
type deps struct {
	cfg      config.Config
	log      *logger.Logger
	store    *store.Store
	obs      observe.Observer
	svc      *curriculum.Service
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

type depsOptions struct {
	// requireLLM fails when no provider is configured. Without it the
	// gateway runs offline and every generation call falls back.
	requireLLM bool

	// metrics registers Prometheus collectors.
	metrics bool
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func buildDeps(cmd *cobra.Command, opts depsOptions) (*deps, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	d := &deps{cfg: cfg, log: log}
	d.closers = append(d.closers, func(context.Context) error { log.Sync(); return nil })

	if err := d.init(ctx, cmd, opts); err != nil {
		d.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return d, nil
}

func (d *deps) init(ctx context.Context, cmd *cobra.Command, opts depsOptions) error {
	dbPath, err := resolveDBPath(cmd, d.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	d.store, err = store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	d.closers = append(d.closers, func(context.Context) error { return d.store.Close() })

	tracer, shutdown, err := observe.InitTracing(ctx, d.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	d.closers = append(d.closers, shutdown)

	observers := []observe.Observer{observe.NewLogging(d.log), observe.NewTracing(tracer)}
	if opts.metrics {
		d.registry = prometheus.NewRegistry()
		m, err := observe.NewMetrics(d.registry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		observers = append(observers, m)
	}
	d.obs = observe.Multi(observers...)

	provider, err := d.provider(ctx, opts.requireLLM)
	if err != nil {
		return err
	}
	gw := gateway.NewLLM(provider, d.cfg.Gateway, d.obs)

	locker, err := d.locker()
	if err != nil {
		return err
	}

	d.svc = curriculum.NewService(d.store, gw, locker, curriculum.Config{
		Ceiling:     d.cfg.Attempts.Ceiling,
		Remediation: d.cfg.Remediation,
	}, curriculum.WithObserver(d.obs))
	return nil
}

func (d *deps) provider(ctx context.Context, required bool) (llm.Provider, error) {
	err := d.cfg.LLM.Validate()
	if err == nil {
		var p llm.Provider
		p, err = llm.NewProvider(ctx, d.cfg.LLM, d.store.EventRepo(), d.log)
		if err == nil {
			return p, nil
		}
	}
	if required {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}
	d.log.Debug("running without an LLM provider", "error", err)
	// An empty mock answers every call as unavailable.
	return llm.NewMockProvider(), nil
}

func (d *deps) locker() (lock.Locker, error) {
	switch d.cfg.Lock.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     d.cfg.Redis.Addr,
			Password: d.cfg.Redis.Password,
			DB:       d.cfg.Redis.DB,
		})
		d.closers = append(d.closers, func(context.Context) error { return client.Close() })
		return lock.NewRedis(client, d.cfg.Lock), nil
	default:
		return lock.NewLocal(d.cfg.Lock.Wait), nil
	}
}

func (d *deps) close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			d.log.Warn("shutdown", "error", err)
		}
	}
}

// retry runs fn once more if it hit a concurrent modification.
func (d *deps) retry(ctx context.Context, fn func() error) error {
	return curriculum.RetryOnce(ctx, d.obs, fn)
}
