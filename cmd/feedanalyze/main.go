package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-insights/pkg/app"
	"transcript-insights/pkg/config"
	"transcript-insights/pkg/domain"
	"transcript-insights/pkg/feed"
	"transcript-insights/pkg/logging"
)

type line struct {
	URL    string         `json:"url"`
	Title  string         `json:"title,omitempty"`
	Cache  string         `json:"cache,omitempty"`
	Result *domain.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func main() {
	var (
		feedURL    = flag.String("feed", "", "RSS/Atom feed URL listing podcast episodes")
		sitemapURL = flag.String("sitemap", "", "Sitemap or sitemap index URL (alternative to -feed)")
		pathFilter = flag.String("path", "", "Only analyze sitemap URLs containing this substring")
		max        = flag.Int("max", 10, "Max most recent episodes to analyze (<=0 means no limit)")
		workers    = flag.Int("workers", 2, "Number of parallel workers (each holds one browser session)")
		envFile    = flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	)
	flag.Parse()

	config.LoadEnvFile(*envFile)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if (*feedURL == "") == (*sitemapURL == "") {
		logger.Error("Exactly one of -feed or -sitemap is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	start := time.Now()
	source := *feedURL
	var episodes []feed.Episode
	if source != "" {
		episodes, err = feed.NewParser().Episodes(ctx, source, *max)
	} else {
		source = *sitemapURL
		episodes, err = feed.NewSitemapParser(logger).Episodes(ctx, source, *pathFilter, *max)
	}
	if err != nil {
		logger.Error("Failed to list episodes", slog.String("source", source), slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
	logger.Info("Analyzing episodes", slog.String("source", source), slog.Int("episodes", len(episodes)))

	reports, _, runErr := feed.NewRunner(*workers, a.Service, logger).Run(ctx, episodes)

	enc := json.NewEncoder(os.Stdout)
	for _, rep := range reports {
		l := line{URL: rep.Episode.URL, Title: rep.Episode.Title}
		if rep.Err != nil {
			l.Error = rep.Err.Error()
		} else {
			res := rep.Outcome.Result
			l.Result = &res
			l.Cache = "MISS"
			if rep.Outcome.Hit {
				l.Cache = "HIT"
			}
		}
		if err := enc.Encode(l); err != nil {
			logger.Error("Failed to write report", slog.String("error", err.Error()))
		}
	}

	logger.Info("Done", slog.Duration("duration", time.Since(start)))
	if runErr != nil {
		logger.Error("Feed analysis failed", slog.String("error", runErr.Error()))
		a.Close()
		os.Exit(1)
	}
}
