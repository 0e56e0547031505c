// Package app assembles the analysis service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"transcript-insights/pkg/analysis"
	"transcript-insights/pkg/archive"
	"transcript-insights/pkg/browser"
	"transcript-insights/pkg/cache"
	"transcript-insights/pkg/cachekey"
	"transcript-insights/pkg/config"
	"transcript-insights/pkg/db"
	"transcript-insights/pkg/extraction"
	"transcript-insights/pkg/httpclient"
	"transcript-insights/pkg/llm"
)

// keyPrefix namespaces entries in shared Redis/Valkey instances.
const keyPrefix = "transcript-insights:"

const closeTimeout = 5 * time.Second

// App holds the assembled service and the resources it owns.
type App struct {
	Service *analysis.Service

	logger  *slog.Logger
	closers []func(context.Context) error
}

// Build connects every configured backend and returns the service. On error
// everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	analyzer, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	opts := cfg.ScraperOptions()
	fp, err := cachekey.NewFingerprint(analyzer.ModelID(), analyzer.Prompt(), opts.Fingerprint())
	if err != nil {
		return nil, err
	}

	store, err := a.openStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache backend %s: %w", cfg.Cache.Backend, err)
	}

	arch, err := a.openArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("archive backend %s: %w", cfg.Archive.Backend, err)
	}

	svc, err := analysis.New(analysis.Config{
		Cache:         cache.New(store, logger),
		Keys:          cachekey.NewBuilder(fp),
		Strategy:      extraction.NewStrategy(opts, logger),
		Browser:       newBrowser(cfg.Scraper),
		Analyzer:      analyzer,
		Archive:       arch,
		ResultTTL:     cfg.Cache.ResultTTL,
		TranscriptTTL: cfg.Cache.TranscriptTTL,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	a.Service = svc

	logger.Info("[App] Service ready",
		slog.String("model", fp.ModelID),
		slog.String("cache", cfg.Cache.Backend),
		slog.String("browser", cfg.Scraper.Driver),
		slog.String("archive", cfg.Archive.Backend))
	return a, nil
}

// Close releases every backend connection in reverse order of opening.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("[App] Error closing resources", slog.String("error", err.Error()))
	}
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openStore(ctx context.Context, cfg config.Cache) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		store := cache.NewRedisStore(client, keyPrefix)
		a.onClose(func(context.Context) error { return store.Close() })
		return store, nil

	case config.CacheValkey:
		client, err := cache.NewValkeyClient(ctx, cache.ValkeyConfig{
			InitAddress: cfg.ValkeyAddress,
			Password:    cfg.ValkeyPassword,
			TLS:         cfg.ValkeyTLS,
		})
		if err != nil {
			return nil, err
		}
		store := cache.NewValkeyStore(client, keyPrefix, a.logger)
		a.onClose(func(context.Context) error { store.Close(); return nil })
		return store, nil

	case config.CacheMongo:
		client := db.NewMongoClient(db.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		store := cache.NewMongoStore(client.Collection())
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return cache.NewMemoryStore(), nil
	}
}

func (a *App) openArchive(ctx context.Context, cfg config.Archive) (archive.Archive, error) {
	switch cfg.Backend {
	case config.ArchivePostgres:
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		arch := archive.NewSQL(client)
		if err := arch.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return arch, nil

	case config.ArchiveSupabase:
		client := db.NewSupabaseClient(db.SupabaseConfig{
			SupabaseURL: cfg.SupabaseURL,
			SupabaseKey: cfg.SupabaseKey,
			Password:    cfg.SupabaseDBPassword,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		if reason := client.FallbackReason(); reason != nil {
			a.logger.Warn("[App] Supabase database unreachable, archiving over REST",
				slog.String("error", reason.Error()))
		}
		return archive.FromSupabase(ctx, client)

	default:
		return nil, nil
	}
}

func newBrowser(cfg config.Scraper) browser.Browser {
	if cfg.Driver == config.DriverStatic {
		return browser.NewStatic(httpclient.NewClient(httpclient.BrowserClient, cfg.Timeout))
	}
	chromeCfg := browser.DefaultChromeConfig()
	chromeCfg.ExecPath = cfg.ChromePath
	return browser.NewChrome(chromeCfg)
}
