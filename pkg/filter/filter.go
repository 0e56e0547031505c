package filter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Filter decides whether an episode URL should be processed.
type Filter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// FilterURLs applies all filters to a list of URLs, preserving order.
func FilterURLs(ctx context.Context, urls []string, filters ...Filter) ([]string, error) {
	filtered := make([]string, 0, len(urls))

	for _, urlStr := range urls {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, urlStr)
			if err != nil {
				return nil, fmt.Errorf("filter error for URL %s: %w", urlStr, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, urlStr)
		}
	}

	return filtered, nil
}

// BaseURLFilter drops site roots, which feeds sometimes list as item links.
type BaseURLFilter struct{}

func NewBaseURLFilter() *BaseURLFilter {
	return &BaseURLFilter{}
}

// ShouldKeep returns false if URL is a base/root URL.
func (f *BaseURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		// Unparseable URLs are left for the browser to reject.
		return true, nil
	}

	path := strings.Trim(parsed.Path, "/")
	return path != "", nil
}

// SchemeFilter keeps only http and https URLs.
type SchemeFilter struct{}

func NewSchemeFilter() *SchemeFilter {
	return &SchemeFilter{}
}

func (f *SchemeFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false, nil
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https", nil
}

// SeenFilter drops URLs it has already kept once. It is not safe for
// concurrent use.
type SeenFilter struct {
	seen map[string]bool
}

// NewSeenFilter creates a filter that also drops every URL in skip.
func NewSeenFilter(skip ...string) *SeenFilter {
	seen := make(map[string]bool, len(skip))
	for _, u := range skip {
		seen[u] = true
	}
	return &SeenFilter{seen: seen}
}

func (f *SeenFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	if f.seen[urlStr] {
		return false, nil
	}
	f.seen[urlStr] = true
	return true, nil
}
