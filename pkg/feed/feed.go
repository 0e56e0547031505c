// Package feed discovers podcast episodes from RSS/Atom feeds or sitemaps and analyzes
// them in batches.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"transcript-insights/pkg/filter"
)

// ErrNoEpisodes is returned when a feed yields no usable episode links.
var ErrNoEpisodes = errors.New("feed contains no episodes")

// Episode is a feed item pointing at an episode page.
type Episode struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Published time.Time `json:"published,omitempty"`
}

// Parser reads RSS/Atom feeds.
type Parser struct {
	feedParser *gofeed.Parser
}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{feedParser: gofeed.NewParser()}
}

// Episodes fetches feedURL and returns up to limit episodes, newest first.
// limit <= 0 means no limit. Items without a usable link are skipped.
func (p *Parser) Episodes(ctx context.Context, feedURL string, limit int) ([]Episode, error) {
	parsed, err := p.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	if parsed == nil || len(parsed.Items) == 0 {
		return nil, ErrNoEpisodes
	}

	byURL := make(map[string]Episode, len(parsed.Items))
	links := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		ep := Episode{URL: item.Link, Title: item.Title}
		switch {
		case item.PublishedParsed != nil:
			ep.Published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			ep.Published = *item.UpdatedParsed
		}
		if _, dup := byURL[item.Link]; !dup {
			byURL[item.Link] = ep
		}
		links = append(links, item.Link)
	}

	return rank(ctx, links, byURL, limit)
}

// rank filters links, keeps the first Episode recorded for each URL and
// returns them newest first, truncated to limit when limit > 0.
func rank(ctx context.Context, links []string, byURL map[string]Episode, limit int) ([]Episode, error) {
	links, err := filter.FilterURLs(ctx, links,
		filter.NewSchemeFilter(),
		filter.NewBaseURLFilter(),
		filter.NewSeenFilter(),
	)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrNoEpisodes
	}

	episodes := make([]Episode, 0, len(links))
	for _, l := range links {
		episodes = append(episodes, byURL[l])
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Published.After(episodes[j].Published)
	})

	if limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}
	return episodes, nil
}
