// Package analysis answers analysis requests for podcast episode pages and
// raw transcript text, consulting the cache before scraping or calling the
// language model.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transcript-insights/pkg/archive"
	"transcript-insights/pkg/browser"
	"transcript-insights/pkg/cache"
	"transcript-insights/pkg/cachekey"
	"transcript-insights/pkg/domain"
	"transcript-insights/pkg/extraction"
	"transcript-insights/pkg/llm"
)

const (
	RouteURL  = "/analyze-url"
	RouteText = "/analyze-text"

	DefaultResultTTL     = 24 * time.Hour
	DefaultTranscriptTTL = 2 * time.Hour
)

// Config wires the service dependencies.
type Config struct {
	Cache    *cache.Cache
	Keys     *cachekey.Builder
	Strategy *extraction.Strategy
	Browser  browser.Browser
	Analyzer llm.Analyzer

	// Archive is optional.
	Archive archive.Archive

	ResultTTL     time.Duration
	TranscriptTTL time.Duration

	Logger *slog.Logger
}

// Outcome is a served result and whether it came from the cache.
type Outcome struct {
	Result domain.Result
	Hit    bool
}

// Service runs the analysis flows. It is safe for concurrent use.
type Service struct {
	cache    *cache.Cache
	keys     *cachekey.Builder
	strategy *extraction.Strategy
	browser  browser.Browser
	analyzer llm.Analyzer
	archive  archive.Archive

	resultTTL     time.Duration
	transcriptTTL time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// New validates cfg and creates a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Cache == nil:
		return nil, fmt.Errorf("cache is required")
	case cfg.Keys == nil:
		return nil, fmt.Errorf("key builder is required")
	case cfg.Strategy == nil:
		return nil, fmt.Errorf("extraction strategy is required")
	case cfg.Browser == nil:
		return nil, fmt.Errorf("browser is required")
	case cfg.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	}

	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.TranscriptTTL <= 0 {
		cfg.TranscriptTTL = DefaultTranscriptTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cache:         cfg.Cache,
		keys:          cfg.Keys,
		strategy:      cfg.Strategy,
		browser:       cfg.Browser,
		analyzer:      cfg.Analyzer,
		archive:       cfg.Archive,
		resultTTL:     cfg.ResultTTL,
		transcriptTTL: cfg.TranscriptTTL,
		logger:        cfg.Logger,
		now:           time.Now,
	}, nil
}

// AnalyzeURL returns the analysis of the transcript found on the episode page
// at pageURL.
func (s *Service) AnalyzeURL(ctx context.Context, pageURL string) (Outcome, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return Outcome{}, fmt.Errorf("%w: missing 'url'", ErrInvalidInput)
	}

	key, err := s.keys.AnalysisKey(RouteURL, s.keys.URLBody(pageURL))
	if err != nil {
		return Outcome{}, err
	}

	var transcript extraction.Result
	res, hit, err := cache.GetOrCompute(ctx, s.cache, key, s.resultTTL,
		func(ctx context.Context) (domain.Result, error) {
			t, err := s.transcript(ctx, pageURL)
			if err != nil {
				return domain.Result{}, err
			}
			if !t.Found() {
				return domain.Result{}, ErrTranscriptNotFound
			}
			transcript = t
			return s.analyze(ctx, t.Text)
		},
		cache.StoreIf(storable),
	)
	if err != nil {
		s.logFailure(RouteURL, key, err)
		return Outcome{}, err
	}

	s.logger.Info("[Analysis] Served",
		slog.String("route", RouteURL),
		slog.String("url", pageURL),
		slog.Bool("hit", hit))

	if !hit {
		s.record(ctx, domain.AnalysisRecord{
			CacheKey:         key,
			Route:            RouteURL,
			SourceURL:        pageURL,
			Title:            transcript.Title,
			ExtractionSource: string(transcript.Source),
			Result:           res,
		})
	}
	return Outcome{Result: res, Hit: hit}, nil
}

// AnalyzeText returns the analysis of a transcript supplied directly.
func (s *Service) AnalyzeText(ctx context.Context, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, fmt.Errorf("%w: missing 'text'", ErrInvalidInput)
	}

	key, err := s.keys.AnalysisKey(RouteText, cachekey.TextBody(text))
	if err != nil {
		return Outcome{}, err
	}

	res, hit, err := cache.GetOrCompute(ctx, s.cache, key, s.resultTTL,
		func(ctx context.Context) (domain.Result, error) {
			return s.analyze(ctx, text)
		},
		cache.StoreIf(storable),
	)
	if err != nil {
		s.logFailure(RouteText, key, err)
		return Outcome{}, err
	}

	s.logger.Info("[Analysis] Served",
		slog.String("route", RouteText),
		slog.Int("chars", len(text)),
		slog.Bool("hit", hit))

	if !hit {
		s.record(ctx, domain.AnalysisRecord{CacheKey: key, Route: RouteText, Result: res})
	}
	return Outcome{Result: res, Hit: hit}, nil
}

// ClearCache evicts every cached analysis and transcript.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("[Analysis] Cache cleared")
	return nil
}

// Stats reports cache lookup counters.
func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// transcript returns the cached extraction for pageURL, scraping on a miss.
// Not-found extractions are cached too, under the shorter transcript TTL.
func (s *Service) transcript(ctx context.Context, pageURL string) (extraction.Result, error) {
	key := s.keys.TranscriptKey(pageURL)
	t, hit, err := cache.GetOrCompute(ctx, s.cache, key, s.transcriptTTL,
		func(ctx context.Context) (extraction.Result, error) {
			res, err := s.strategy.ExtractURL(ctx, s.browser, pageURL)
			if err != nil {
				return extraction.Result{}, &ServiceError{Op: "extract transcript", Err: err}
			}
			return res, nil
		},
	)
	if err != nil {
		return extraction.Result{}, err
	}

	s.logger.Debug("[Analysis] Transcript lookup",
		slog.String("url", pageURL),
		slog.String("source", string(t.Source)),
		slog.Bool("hit", hit))
	return t, nil
}

func (s *Service) analyze(ctx context.Context, text string) (domain.Result, error) {
	out, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.Result{}, &ServiceError{Op: "analyze transcript", Err: err}
	}
	return Normalize(out), nil
}

// Normalize converts model output into a Result. Raw text that decodes as an
// analysis is treated as one; anything else is returned under Raw.
func Normalize(out llm.Output) domain.Result {
	if a, ok := out.Analysis(); ok {
		return domain.ResultFromAnalysis(a)
	}
	text, _ := out.Text()
	if a, ok := llm.DecodeOutput(text).Analysis(); ok {
		return domain.ResultFromAnalysis(a)
	}
	return domain.Result{Raw: text}
}

func storable(r domain.Result) bool {
	return !r.IsError()
}

func (s *Service) record(ctx context.Context, rec domain.AnalysisRecord) {
	if s.archive == nil {
		return
	}
	rec.Model = s.analyzer.ModelID()
	rec.AnalyzedAt = s.now().UTC()

	if err := s.archive.Append(ctx, rec); err != nil {
		s.logger.Warn("[Analysis] Failed to archive result",
			slog.String("key", rec.CacheKey),
			slog.String("error", err.Error()))
	}
}

func (s *Service) logFailure(route, key string, err error) {
	level := slog.LevelError
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrTranscriptNotFound) {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "[Analysis] Request failed",
		slog.String("route", route),
		slog.String("key", key),
		slog.String("error", err.Error()))
}
