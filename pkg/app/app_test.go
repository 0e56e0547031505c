package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"transcript-insights/pkg/config"
	"transcript-insights/pkg/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:   "0",
		OpenAI: config.OpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
		Cache: config.Cache{
			Backend:       config.CacheMemory,
			ResultTTL:     time.Hour,
			TranscriptTTL: time.Minute,
		},
		Scraper: config.Scraper{
			Driver:          config.DriverStatic,
			Timeout:         5 * time.Second,
			StripTimestamps: true,
			ContentClass:    "cfm-transcript-content",
		},
		Archive: config.Archive{Backend: config.ArchiveNone},
	}
}

func TestBuild_Memory(t *testing.T) {
	var logs bytes.Buffer
	a, err := Build(context.Background(), testConfig(), logging.NewWithWriter(&logs, "info"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	if a.Service == nil {
		t.Fatal("service not built")
	}
	if !bytes.Contains(logs.Bytes(), []byte("model=openai:gpt-4o-mini")) {
		t.Errorf("startup log missing model: %s", logs.String())
	}
}

func TestBuild_Redis(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisAddress = s.Addr()

	a, err := Build(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if err := s.Set(keyPrefix+"stale", "x"); err != nil {
		t.Fatal(err)
	}
	if err := a.Service.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if s.Exists(keyPrefix + "stale") {
		t.Error("ClearCache left prefixed keys behind")
	}
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing api key", func(c *config.Config) { c.OpenAI.APIKey = "" }},
		{"redis unreachable", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.RedisAddress = "127.0.0.1:1"
		}},
		{"postgres without dsn", func(c *config.Config) { c.Archive.Backend = config.ArchivePostgres }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := Build(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error")); err == nil {
				t.Error("Build succeeded")
			}
		})
	}
}
