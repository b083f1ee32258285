package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"homework-watcher/internal/alerting"
	"homework-watcher/internal/config"
	"homework-watcher/internal/fetcher"
	"homework-watcher/internal/metrics"
	"homework-watcher/internal/scheduler"
	"homework-watcher/internal/service"
	"homework-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.StatusFetcher {
	cfg := a.Config.Practicum
	return fetcher.NewPracticum(fetcher.PracticumOptions{
		Endpoint:   cfg.Endpoint,
		Token:      cfg.Token,
		AuthScheme: cfg.AuthScheme,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting.Telegram

	var notifier alerting.Notifier
	switch cfg.Driver {
	case config.DriverTelebot:
		chatID, err := cfg.NumericChatID()
		if err != nil {
			return nil, fmt.Errorf("parse chat id: %w", err)
		}
		tb, err := alerting.NewTelebotNotifier(cfg.BotToken, chatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
		if err != nil {
			return nil, err
		}
		notifier = tb
	default:
		notifier = alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}

	return alerting.NewRateLimited(notifier, a.Config.Alerting.RatePerMinute, a.Config.Alerting.RateBurst, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newPoller assembles the poll loop. sched may be nil for one-shot use.
func (a *App) newPoller(sched *scheduler.Scheduler, locker service.Locker, m *metrics.Metrics) (*service.Poller, error) {
	notifier, err := a.newNotifier()
	if err != nil {
		return nil, err
	}

	cycle := service.NewCycle(a.newFetcher(), notifier, m, a.Logger)

	var lockKey int64
	if locker != nil {
		lockKey = a.Config.Database.AdvisoryLockKey
	}

	return service.NewPoller(service.Options{
		Interval:        a.Config.Scheduler.Interval,
		TrackServerDate: a.Config.Scheduler.TrackServerDate,
		LockKey:         lockKey,
	}, sched, cycle, notifier, locker, m, a.Logger)
}

// Run executes the long-running poller.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var locker service.Locker
	if store != nil {
		locker = store
	} else {
		a.Logger.Debug().Msg("database.dsn not configured; single-instance lock disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	if addr := a.Config.Metrics.ListenAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, registry, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	poller, err := a.newPoller(sched, locker, m)
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting homework poller")
	err = poller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("poller terminated with error")
		return err
	}

	a.Logger.Info().Msg("homework poller stopped")
	return nil
}
