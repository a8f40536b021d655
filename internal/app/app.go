// Package app wires configuration into the scraper, its sessions and sinks.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/events"
	"github.com/maltedev/catalog-scraper/internal/fetch"
	"github.com/maltedev/catalog-scraper/internal/jobs"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

// SessionFactory opens an HTTP or browser session per run, depending on
// FETCH_MODE.
func SessionFactory(cfg *config.Config, logger *slog.Logger) scraper.SessionFactory {
	return func(ctx context.Context) (scraper.Session, error) {
		if cfg.Scraper.FetchMode == config.FetchModeBrowser {
			b, err := browser.New(browserOptions(cfg, logger))
			if err != nil {
				return nil, err
			}
			return b, nil
		}

		client, err := fetch.NewClient(fetch.Options{
			Timeout:               cfg.Scraper.Timeout(),
			MaxConcurrentRequests: cfg.Scraper.MaxConcurrentRequests,
			UserAgent:             cfg.Scraper.UserAgent,
			AcceptLanguage:        cfg.Scraper.AcceptLanguage,
			Logger:                logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func browserOptions(cfg *config.Config, logger *slog.Logger) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Scraper.Timeout()
	opts.UserAgent = cfg.Scraper.UserAgent
	opts.AcceptLanguage = cfg.Scraper.AcceptLanguage
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.Logger = logger
	return opts
}

// OrchestratorOptions applies per-run overrides to the configured limits.
func OrchestratorOptions(cfg *config.Config, params jobs.RunParams) scraper.Options {
	opts := scraper.Options{
		BaseURL:       cfg.Site.BaseURL,
		MaxCategories: cfg.Scraper.MaxCategories,
		CategoryDelay: 2 * cfg.Scraper.RequestDelay(),
		RunTimeout:    cfg.Scraper.RunTimeout,
		Crawl: scraper.CrawlOptions{
			MaxPages:       cfg.Scraper.MaxPagesPerCategory,
			RequestDelay:   cfg.Scraper.RequestDelay(),
			DetailedScrape: cfg.Scraper.DetailedScrape,
			DetailDelay:    cfg.Scraper.DetailDelay,
			MaxConcurrent:  cfg.Scraper.MaxConcurrentRequests,
		},
	}

	if params.MaxCategories > 0 {
		opts.MaxCategories = params.MaxCategories
	}
	if params.MaxPages > 0 {
		opts.Crawl.MaxPages = params.MaxPages
	}
	if params.Detailed != nil {
		opts.Crawl.DetailedScrape = *params.Detailed
	}
	return opts
}

func NewOrchestrator(cfg *config.Config, params jobs.RunParams, observer scraper.RunObserver, logger *slog.Logger) *scraper.Orchestrator {
	return scraper.NewOrchestrator(SessionFactory(cfg, logger), authenticator(cfg, logger), OrchestratorOptions(cfg, params), observer, logger)
}

// authenticator returns nil when no site credentials are configured, which
// makes runs browse anonymously.
func authenticator(cfg *config.Config, logger *slog.Logger) *scraper.Authenticator {
	if !cfg.Site.HasCredentials() {
		logger.Info("no site credentials configured, running without login")
		return nil
	}
	return scraper.NewAuthenticator(scraper.Credentials{
		LoginURL:      cfg.Site.LoginURL(),
		Username:      cfg.Site.Username,
		Password:      cfg.Site.Password,
		UsernameField: cfg.Site.UsernameField,
		PasswordField: cfg.Site.PasswordField,
	}, logger)
}

// Runner runs a fresh orchestrator per job.
func Runner(cfg *config.Config, observer scraper.RunObserver, logger *slog.Logger) jobs.Runner {
	return func(ctx context.Context, params jobs.RunParams) (*scraper.Result, error) {
		return NewOrchestrator(cfg, params, observer, logger).Run(ctx)
	}
}

// OpenExternalSinks connects the Postgres and Redis sinks that are enabled.
// The returned cleanup closes every opened connection.
func OpenExternalSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.MultiSink, func(), error) {
	var sinks storage.MultiSink
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := database.New(connectCtx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		cancel()
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, db.Close)

		repo := database.NewProductRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		sinks = append(sinks, repo)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to connect to redis: %w", err)
		}

		publisher := events.NewPublisher(client, cfg.Redis.Stream, logger)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		})
		sinks = append(sinks, publisher)
	}

	return sinks, cleanup, nil
}
