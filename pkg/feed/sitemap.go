package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transcript-insights/pkg/httpclient"
)

const fetchTimeout = 30 * time.Second

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Location string `xml:"loc"`
}

// SitemapParser lists episode pages from an XML sitemap or sitemap index.
type SitemapParser struct {
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// NewSitemapParser creates a sitemap parser.
func NewSitemapParser(logger *slog.Logger) *SitemapParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapParser{
		client: httpclient.NewClient(httpclient.CloudflareClient, fetchTimeout),
		logger: logger,
	}
}

// Episodes returns up to limit sitemap URLs whose path contains pathFilter,
// most recently modified first. Indexes are followed one level deep; a child
// sitemap that fails is logged and skipped.
func (p *SitemapParser) Episodes(ctx context.Context, sitemapURL, pathFilter string, limit int) ([]Episode, error) {
	entries, err := p.fetch(ctx, sitemapURL, true)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]Episode, len(entries))
	links := make([]string, 0, len(entries))
	for _, e := range entries {
		if pathFilter != "" && !strings.Contains(e.Location, pathFilter) {
			continue
		}
		if _, dup := byURL[e.Location]; !dup {
			byURL[e.Location] = Episode{URL: e.Location, Published: parseLastMod(e.LastMod)}
		}
		links = append(links, e.Location)
	}

	return rank(ctx, links, byURL, limit)
}

func (p *SitemapParser) fetch(ctx context.Context, sitemapURL string, followIndex bool) ([]urlEntry, error) {
	body, _, err := p.client.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	if !bytes.Contains(head, []byte("sitemapindex")) {
		return parseSitemap(body)
	}

	if !followIndex {
		return nil, fmt.Errorf("nested sitemap index at %s", sitemapURL)
	}
	children, err := parseSitemapIndex(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap index: %w", err)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("sitemap index contained no sitemap URLs")
	}

	var all []urlEntry
	for _, child := range children {
		entries, err := p.fetch(ctx, child, false)
		if err != nil {
			p.logger.Warn("[Feed] Skipping sitemap",
				slog.String("sitemap", child),
				slog.String("error", err.Error()))
			continue
		}
		all = append(all, entries...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no entries found in any sitemap from index")
	}
	return all, nil
}

func parseSitemapIndex(body []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, ref := range index.Sitemaps {
		if loc := strings.TrimSpace(ref.Location); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func parseSitemap(body []byte) ([]urlEntry, error) {
	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	entries := make([]urlEntry, 0, len(set.URLs))
	for _, u := range set.URLs {
		u.Location = strings.TrimSpace(u.Location)
		if u.Location != "" {
			entries = append(entries, u)
		}
	}
	return entries, nil
}

// parseLastMod accepts the W3C datetime forms sitemaps use. Unparseable
// values sort last.
func parseLastMod(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
