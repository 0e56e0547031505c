// Package extraction reads a transcript out of an episode page. Text rendered
// directly in the page wins; otherwise the transcript iframe's document is
// opened in its own browsing context and its paragraphs are collected.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"transcript-insights/pkg/browser"
	"transcript-insights/pkg/content"
)

// Source records which attempt produced a transcript.
type Source string

const (
	SourceDirect Source = "DIRECT"
	SourceIframe Source = "IFRAME"
	SourceNone   Source = "NONE"
)

// DefaultIframeSelector covers the iframe patterns known to host transcripts.
const DefaultIframeSelector = "iframe.transcript-iframe, " +
	".transcript-section iframe, " +
	"iframe[src*='transcripts'], " +
	"iframe[src*='transcript']"

const paragraphSelector = "p"

var (
	// ErrSession is returned when no browser session could be started.
	ErrSession = errors.New("browser session unavailable")
	// ErrNavigation is returned when the episode page itself cannot be loaded.
	ErrNavigation = errors.New("page navigation failed")
)

// Options configures the extraction attempts. Every field that changes the
// extracted text is part of Fingerprint.
type Options struct {
	// ContentClass is the class name of elements holding in-page transcript text.
	ContentClass string
	// IframeSelector is a CSS selector list matching transcript iframes.
	IframeSelector string
	// Timeout bounds each element wait.
	Timeout time.Duration
	// NavigationTimeout bounds loading the episode page.
	NavigationTimeout time.Duration
	// StripTimestamps removes [HH:MM:SS] markers from the text.
	StripTimestamps bool
}

// DefaultOptions returns the production scraper options.
func DefaultOptions() Options {
	return Options{
		ContentClass:      "cfm-transcript-content",
		IframeSelector:    DefaultIframeSelector,
		Timeout:           15 * time.Second,
		NavigationTimeout: 30 * time.Second,
		StripTimestamps:   true,
	}
}

// Fingerprint lists the options that determine extraction output, keyed the
// way they are hashed into transcript cache keys.
func (o Options) Fingerprint() map[string]any {
	return map[string]any{
		"strip_timestamps": o.StripTimestamps,
		"timeout":          int(o.Timeout / time.Second),
		"basic_class":      o.ContentClass,
		"iframe_sel":       o.IframeSelector,
	}
}

// Result is the outcome of one extraction. Text is empty iff Source is SourceNone.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Title  string `json:"title,omitempty"`
}

// Found reports whether a transcript was extracted.
func (r Result) Found() bool {
	return r.Source != SourceNone && r.Text != ""
}

func none() Result {
	return Result{Source: SourceNone}
}

type attempt struct {
	source Source
	run    func(ctx context.Context, sess browser.Session, pageURL string) string
}

// Strategy runs the ordered extraction attempts against a browser session.
type Strategy struct {
	opts     Options
	logger   *slog.Logger
	attempts []attempt
}

// NewStrategy creates a Strategy. A nil logger uses slog.Default().
func NewStrategy(opts Options, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}

	s := &Strategy{opts: opts, logger: logger}
	s.attempts = []attempt{
		{source: SourceDirect, run: s.direct},
		{source: SourceIframe, run: s.iframe},
	}
	return s
}

// Options returns the options the strategy runs with.
func (s *Strategy) Options() Options {
	return s.opts
}

// Extract runs the attempts in order on a session that has already loaded
// pageURL, and returns the first non-empty transcript. Failures inside an
// attempt only make that attempt come up empty.
func (s *Strategy) Extract(ctx context.Context, sess browser.Session, pageURL string) Result {
	for _, a := range s.attempts {
		if text := a.run(ctx, sess, pageURL); text != "" {
			s.logger.Info("[Extraction] Transcript extracted",
				slog.String("url", pageURL),
				slog.String("source", string(a.source)),
				slog.Int("chars", len(text)))
			return Result{Text: text, Source: a.source}
		}
	}

	s.logger.Info("[Extraction] No transcript found", slog.String("url", pageURL))
	return none()
}

// ExtractURL acquires a session from b, loads pageURL and extracts its
// transcript. The session is closed on every return path.
func (s *Strategy) ExtractURL(ctx context.Context, b browser.Browser, pageURL string) (Result, error) {
	sess, err := b.NewSession(ctx)
	if err != nil {
		return none(), fmt.Errorf("%w: %w", ErrSession, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("[Extraction] Failed to close browser session",
				slog.String("url", pageURL),
				slog.String("error", err.Error()))
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	err = sess.Navigate(navCtx, pageURL)
	cancel()
	if err != nil {
		return none(), fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	res := s.Extract(ctx, sess, pageURL)
	if res.Found() {
		res.Title = s.pageTitle(ctx, sess)
	}
	return res, nil
}

func (s *Strategy) direct(ctx context.Context, sess browser.Session, pageURL string) string {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	texts, err := sess.Texts(waitCtx, "."+s.opts.ContentClass)
	if err != nil {
		s.logger.Debug("[Extraction] Direct transcript elements not found",
			slog.String("url", pageURL),
			slog.String("error", err.Error()))
		return ""
	}
	return content.Clean(texts, s.opts.StripTimestamps)
}

func (s *Strategy) iframe(ctx context.Context, sess browser.Session, pageURL string) string {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	src, err := sess.Attribute(waitCtx, s.opts.IframeSelector, "src")
	cancel()
	if err != nil {
		s.logger.Debug("[Extraction] Transcript iframe not found",
			slog.String("url", pageURL),
			slog.String("error", err.Error()))
		return ""
	}

	src = resolveAgainst(pageURL, strings.TrimSpace(src))
	if src == "" {
		return ""
	}

	original := sess.Handle()
	if _, err := sess.OpenContext(ctx); err != nil {
		s.logger.Warn("[Extraction] Failed to open browsing context",
			slog.String("url", pageURL),
			slog.String("error", err.Error()))
		return ""
	}
	defer s.release(ctx, sess, original)

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	err = sess.Navigate(navCtx, src)
	cancel()
	if err != nil {
		s.logger.Debug("[Extraction] Failed to load transcript iframe",
			slog.String("src", src),
			slog.String("error", err.Error()))
		return ""
	}

	waitCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	texts, err := sess.Texts(waitCtx, paragraphSelector)
	if err != nil {
		s.logger.Debug("[Extraction] No paragraphs in transcript iframe",
			slog.String("src", src),
			slog.String("error", err.Error()))
		return ""
	}
	return content.Clean(texts, s.opts.StripTimestamps)
}

// release closes the secondary context and re-activates the original one.
// Failures are logged and never replace the attempt's result.
func (s *Strategy) release(ctx context.Context, sess browser.Session, original string) {
	ctx = context.WithoutCancel(ctx)
	if err := sess.CloseContext(ctx); err != nil {
		s.logger.Warn("[Extraction] Failed to close browsing context",
			slog.String("error", err.Error()))
	}
	if err := sess.SwitchTo(original); err != nil {
		s.logger.Warn("[Extraction] Failed to restore original browsing context",
			slog.String("handle", original),
			slog.String("error", err.Error()))
	}
}

func (s *Strategy) pageTitle(ctx context.Context, sess browser.Session) string {
	html, err := sess.HTML(ctx)
	if err != nil {
		return ""
	}
	title, err := content.ExtractTitle(html)
	if err != nil {
		return ""
	}
	return title
}

func resolveAgainst(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
