// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"

	"transcript-insights/pkg/extraction"
	"transcript-insights/pkg/llm"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheValkey = "valkey"
	CacheMongo  = "mongo"
)

// Browser drivers.
const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

// Archive backends.
const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveSupabase = "supabase"
)

type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Cache struct {
	Backend       string
	ResultTTL     time.Duration
	TranscriptTTL time.Duration

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool

	MongoURI        string
	MongoDB         string
	MongoCollection string
}

type Scraper struct {
	Driver          string
	ChromePath      string
	Timeout         time.Duration
	StripTimestamps bool
	ContentClass    string
	IframeSelector  string
}

type Archive struct {
	Backend            string
	PostgresDSN        string
	SupabaseURL        string
	SupabaseKey        string
	SupabaseDBPassword string
}

// Config is the full service configuration.
type Config struct {
	Port     string
	LogLevel string

	// AllowedOrigins lists the browser origins permitted by CORS.
	AllowedOrigins []string

	OpenAI  OpenAI
	Cache   Cache
	Scraper Scraper
	Archive Archive
}

// LoadEnvFile loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if err := gotenv.Load(path); err != nil {
		slog.Debug("[Config] No .env file found, using OS environment", slog.String("path", path))
	}
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	var errs []error

	scraperDefaults := extraction.DefaultOptions()

	cfg := &Config{
		Port:     getEnv("PORT", "5000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		OpenAI: OpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnv("OPENAI_MODEL", llm.DefaultModel),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Cache: Cache{
			Backend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			ResultTTL:       getDuration("RESULT_TTL", 24*time.Hour, &errs),
			TranscriptTTL:   getDuration("TRANSCRIPT_TTL", 2*time.Hour, &errs),
			RedisAddress:    getEnv("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword:   os.Getenv("REDIS_PASSWORD"),
			RedisDB:         getInt("REDIS_DB", 0, &errs),
			ValkeyAddress:   os.Getenv("VALKEY_INIT_ADDRESS"),
			ValkeyPassword:  os.Getenv("VALKEY_PASSWORD"),
			ValkeyTLS:       getBool("VALKEY_TLS", false, &errs),
			MongoURI:        os.Getenv("MONGO_URI"),
			MongoDB:         getEnv("MONGO_DB", "transcript_insights"),
			MongoCollection: getEnv("MONGO_COLLECTION", "cache"),
		},
		Scraper: Scraper{
			Driver:          strings.ToLower(getEnv("BROWSER_DRIVER", DriverChrome)),
			ChromePath:      os.Getenv("CHROME_PATH"),
			Timeout:         getDuration("SCRAPER_TIMEOUT", scraperDefaults.Timeout, &errs),
			StripTimestamps: getBool("SCRAPER_STRIP_TIMESTAMPS", scraperDefaults.StripTimestamps, &errs),
			ContentClass:    getEnv("SCRAPER_CONTENT_CLASS", scraperDefaults.ContentClass),
			IframeSelector:  getEnv("SCRAPER_IFRAME_SELECTOR", scraperDefaults.IframeSelector),
		},
		Archive: Archive{
			Backend:            strings.ToLower(getEnv("ARCHIVE_BACKEND", ArchiveNone)),
			PostgresDSN:        os.Getenv("POSTGRES_DSN"),
			SupabaseURL:        os.Getenv("SUPABASE_URL"),
			SupabaseKey:        os.Getenv("SUPABASE_KEY"),
			SupabaseDBPassword: os.Getenv("SUPABASE_DB_PASSWORD"),
		},
	}

	cfg.AllowedOrigins = getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddress == "" {
			errs = append(errs, errors.New("REDIS_ADDRESS is required for the redis cache"))
		}
	case CacheValkey:
		if c.Cache.ValkeyAddress == "" {
			errs = append(errs, errors.New("VALKEY_INIT_ADDRESS is required for the valkey cache"))
		}
	case CacheMongo:
		if c.Cache.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}

	if c.Cache.ResultTTL <= 0 || c.Cache.TranscriptTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}

	switch c.Scraper.Driver {
	case DriverChrome, DriverStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown BROWSER_DRIVER %q", c.Scraper.Driver))
	}

	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchivePostgres:
		if c.Archive.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres archive"))
		}
	case ArchiveSupabase:
		if c.Archive.SupabaseURL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required for the supabase archive"))
		}
		if c.Archive.SupabaseKey == "" && c.Archive.SupabaseDBPassword == "" {
			errs = append(errs, errors.New("SUPABASE_KEY or SUPABASE_DB_PASSWORD is required for the supabase archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_BACKEND %q", c.Archive.Backend))
	}

	return errors.Join(errs...)
}

// ScraperOptions converts the scraper settings into extraction options.
func (c *Config) ScraperOptions() extraction.Options {
	opts := extraction.DefaultOptions()
	opts.Timeout = c.Scraper.Timeout
	opts.StripTimestamps = c.Scraper.StripTimestamps
	opts.ContentClass = c.Scraper.ContentClass
	opts.IframeSelector = c.Scraper.IframeSelector
	return opts
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// getList splits a comma-separated value, dropping blanks.
func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getDuration accepts Go durations ("90s", "2h") and bare integers as seconds.
func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return defaultValue
	}
	return b
}
