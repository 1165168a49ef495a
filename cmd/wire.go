package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okian/divtracker/internal/adapters/browser"
	"github.com/okian/divtracker/internal/adapters/repository"
	"github.com/okian/divtracker/internal/adapters/tracker"
	"github.com/okian/divtracker/internal/adapters/ubi"
	service "github.com/okian/divtracker/internal/app"
	"github.com/okian/divtracker/internal/config"
	"github.com/okian/divtracker/internal/domain/dedupe"
	"github.com/okian/divtracker/internal/domain/resolve"
	"github.com/okian/divtracker/internal/domain/session"
	"github.com/okian/divtracker/internal/domain/stats"
	"github.com/okian/divtracker/pkg/logger"
)

const configEnv = "DIVTRACKER_CONFIG"

// setup loads the configuration and initializes logging. Logs go to stderr
// so that command output on stdout stays machine readable.
func setup(ctx context.Context, configPath string) (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(configEnv, configPath); err != nil {
			return nil, fmt.Errorf("set %s: %w", configEnv, err)
		}
	}
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// open builds and starts a service for one-shot commands.
func open(ctx context.Context, configPath string) (*service.Service, error) {
	cfg, err := setup(ctx, configPath)
	if err != nil {
		return nil, err
	}
	svc, err := build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// build wires every component described by cfg.
func build(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	store, err := repository.Open(ctx, repository.Params{
		Driver:        cfg.StoreDriver,
		DSN:           cfg.StoreDSN,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}, repository.WithLogger(logger.Named("repository")))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	client, err := ubi.New(
		ubi.WithBaseURL(cfg.UbiBaseURL),
		ubi.WithAppID(cfg.UbiAppID),
		ubi.WithTimeout(cfg.RequestTimeout()),
		ubi.WithLogger(logger.Named("ubi")),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if cfg.UbiUsername == "" || cfg.UbiPassword == "" {
		logger.Get().Warn(ctx, "ubi credentials are not set; game 1 lookups will fail")
	}

	sessions := session.NewManager(
		ubi.NewAuthenticator(client, cfg.UbiUsername, cfg.UbiPassword),
		session.WithMargin(cfg.RenewalMargin()),
		session.WithAttempts(cfg.RenewalAttempts),
		session.WithRetryInterval(cfg.RenewalInterval()),
		session.WithRenewTimeout(time.Duration(cfg.RenewalAttempts)*(cfg.RequestTimeout()+cfg.RenewalInterval())),
		session.WithLogger(logger.Named("session")),
	)

	resolver := resolve.New(ubi.NewDirectory(client, sessions), store, resolve.WithLogger(logger.Named("resolve")))
	fetchOpts := []stats.Option{
		stats.WithConcurrency(cfg.FetchConcurrency),
		stats.WithTimeout(cfg.BrowserTimeout()),
		stats.WithLogger(logger.Named("stats")),
	}
	if cfg.RecordCacheSize > 0 {
		fetchOpts = append(fetchOpts, stats.WithDeduper(dedupe.NewInMemory(dedupe.WithMaxSize(cfg.RecordCacheSize))))
	}
	fetcher := stats.New(resolver, store, fetchOpts...)

	pages := tracker.New(newBrowser(cfg),
		tracker.WithBaseURL(cfg.TrackerBaseURL),
		tracker.WithTimeout(cfg.BrowserTimeout()),
		tracker.WithLogger(logger.Named("tracker")),
	)

	return service.New(fetcher, store,
		service.WithSource(ubi.NewStatsSource(client, sessions, cfg.SpaceID)),
		service.WithSource(pages),
		service.WithSession(sessions),
		service.WithCloser(store.Close),
		service.WithLogger(logger.Named("service")),
	), nil
}

func newBrowser(cfg *config.Config) browser.Browser {
	opts := []browser.Option{
		browser.WithHeadless(cfg.BrowserHeadless),
		browser.WithLogger(logger.Named("browser")),
	}
	if cfg.BrowserDriver == config.BrowserDevTools {
		return browser.NewDevTools(cfg.BrowserURL, opts...)
	}
	return browser.NewWebDriver(cfg.BrowserURL, opts...)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
