package domain

import "time"

// AnalysisRecord is a computed analysis kept in the archive.
//
// Records are append-only: every cache miss that produced a result adds one,
// so the same source may appear many times across cache generations.
type AnalysisRecord struct {
	// CacheKey is the analysis key the result was stored under.
	CacheKey string `json:"cache_key"`

	// Route is the request route, /analyze-url or /analyze-text.
	Route string `json:"route"`

	// SourceURL is the episode page, empty for raw-text analyses.
	SourceURL string `json:"source_url,omitempty"`

	// Title is the episode title, when the page had one.
	Title string `json:"title,omitempty"`

	// ExtractionSource is where the transcript was found (DIRECT or IFRAME).
	ExtractionSource string `json:"extraction_source,omitempty"`

	// Model identifies the provider and model that produced the result.
	Model string `json:"model"`

	Result Result `json:"result"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}
