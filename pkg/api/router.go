// Package api exposes the analysis service over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"transcript-insights/pkg/analysis"
	"transcript-insights/pkg/cache"
)

// Service is the subset of analysis.Service the handlers use.
type Service interface {
	AnalyzeURL(ctx context.Context, pageURL string) (analysis.Outcome, error)
	AnalyzeText(ctx context.Context, text string) (analysis.Outcome, error)
	ClearCache(ctx context.Context) error
	Stats() cache.Stats
}

// Config wires the router.
type Config struct {
	Service        Service
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.AllowedOrigins))

	h := &handler{svc: cfg.Service, logger: logger}
	router.POST("/analyze-url", h.analyzeURL)
	router.POST("/analyze-text", h.analyzeText)
	router.DELETE("/cache/clear", h.clearCache)
	router.GET("/cache/stats", h.cacheStats)
	router.GET("/health", h.health)

	return router
}
