package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSitemapParser_Index(t *testing.T) {
	sitemap1 := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/episodes/1</loc><lastmod>2026-01-05</lastmod></url>
	<url><loc>https://example.com/about</loc><lastmod>2026-03-01</lastmod></url>
</urlset>`

	sitemap2 := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/episodes/2</loc><lastmod>2026-01-12T08:00:00Z</lastmod></url>
	<url><loc> https://example.com/episodes/3 </loc><lastmod>2026-01-19T08:00:00+00:00</lastmod></url>
	<url><loc>https://example.com/episodes/1</loc></url>
</urlset>`

	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/sitemap-index.xml":
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>` + serverURL + `/sitemap1.xml</loc></sitemap>
	<sitemap><loc>` + serverURL + `/sitemap2.xml</loc></sitemap>
	<sitemap><loc>` + serverURL + `/missing.xml</loc></sitemap>
</sitemapindex>`))
		case "/sitemap1.xml":
			w.Write([]byte(sitemap1))
		case "/sitemap2.xml":
			w.Write([]byte(sitemap2))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	episodes, err := NewSitemapParser(nil).Episodes(context.Background(), server.URL+"/sitemap-index.xml", "/episodes/", 0)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}

	want := []string{
		"https://example.com/episodes/3",
		"https://example.com/episodes/2",
		"https://example.com/episodes/1",
	}
	if len(episodes) != len(want) {
		t.Fatalf("got %d episodes, want %d: %+v", len(episodes), len(want), episodes)
	}
	for i, ep := range episodes {
		if ep.URL != want[i] {
			t.Errorf("episode %d = %s, want %s", i, ep.URL, want[i])
		}
	}
	if !episodes[2].Published.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("lastmod of first occurrence not kept: %v", episodes[2].Published)
	}
}

func TestSitemapParser_NoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/blog/1</loc></url></urlset>`))
	}))
	defer server.Close()

	_, err := NewSitemapParser(nil).Episodes(context.Background(), server.URL, "/episodes/", 0)
	if !errors.Is(err, ErrNoEpisodes) {
		t.Errorf("err = %v, want ErrNoEpisodes", err)
	}
}

func TestSitemapParser_InvalidXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>broken`))
	}))
	defer server.Close()

	if _, err := NewSitemapParser(nil).Episodes(context.Background(), server.URL, "", 0); err == nil {
		t.Error("expected error for malformed sitemap")
	}
}

func TestParseLastMod(t *testing.T) {
	tests := map[string]time.Time{
		"2026-01-05":                time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		"2026-01-05T10:30Z":         time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
		"2026-01-05T10:30:00Z":      time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
		"2026-01-05T10:30:00+00:00": time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
		"yesterday":                 {},
		"":                          {},
	}
	for in, want := range tests {
		if got := parseLastMod(in); !got.Equal(want) {
			t.Errorf("parseLastMod(%q) = %v, want %v", in, got, want)
		}
	}
}
