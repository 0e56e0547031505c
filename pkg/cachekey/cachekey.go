// Package cachekey derives deterministic cache keys for analysis results and
// scraped transcripts. Keys embed the processing fingerprint (model, prompt,
// scraper options) so that changing any of them invalidates old entries.
package cachekey

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	analysisNamespace   = "analyze"
	transcriptNamespace = "transcript"

	// shortHashLen is the prefix length used for prompt and scraper option digests.
	shortHashLen = 12
)

// Fingerprint identifies the processing configuration. It is built once at
// startup and shared read-only by every request.
type Fingerprint struct {
	ModelID            string
	PromptHash         string
	ScraperOptionsHash string
}

// NewFingerprint hashes the prompt and the scraper options.
func NewFingerprint(modelID, prompt string, scraperOptions map[string]any) (Fingerprint, error) {
	optsHash, err := Digest(scraperOptions)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash scraper options: %w", err)
	}
	return Fingerprint{
		ModelID:            modelID,
		PromptHash:         SHA256(prompt),
		ScraperOptionsHash: optsHash,
	}, nil
}

// Builder composes keys under a fixed fingerprint.
type Builder struct {
	fp Fingerprint
}

// NewBuilder creates a Builder for fp.
func NewBuilder(fp Fingerprint) *Builder {
	return &Builder{fp: fp}
}

// Fingerprint returns the fingerprint keys are built with.
func (b *Builder) Fingerprint() Fingerprint {
	return b.fp
}

// AnalysisKey returns the key for an analysis request on route with the given
// body. Body keys are serialized in sorted order, so logically equal bodies
// always produce the same key.
func (b *Builder) AnalysisKey(route string, body map[string]any) (string, error) {
	serialized, err := Canonical(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize body: %w", err)
	}
	bodyHash := SHA256(route + "::" + serialized)

	return strings.Join([]string{
		analysisNamespace,
		route,
		b.fp.ModelID,
		short(b.fp.PromptHash),
		bodyHash,
	}, ":"), nil
}

// TranscriptKey returns the key for the transcript scraped from pageURL.
func (b *Builder) TranscriptKey(pageURL string) string {
	return strings.Join([]string{
		transcriptNamespace,
		short(b.fp.ScraperOptionsHash),
		SHA256(pageURL),
	}, ":")
}

// TextBody is the request body used to key raw-text analyses. Only the digest
// of the text is keyed; the text itself never appears in a key.
func TextBody(text string) map[string]any {
	return map[string]any{"text_hash": SHA256(text)}
}

// URLBody is the request body used to key URL analyses. It carries the
// scraper options digest, since the analysed text depends on how the page
// was scraped.
func (b *Builder) URLBody(pageURL string) map[string]any {
	return map[string]any{
		"url":     pageURL,
		"scraper": short(b.fp.ScraperOptionsHash),
	}
}

// Canonical serializes v as compact JSON with map keys sorted and without
// HTML escaping.
func Canonical(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Digest is the SHA-256 hex digest of Canonical(v).
func Digest(v any) (string, error) {
	s, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return SHA256(s), nil
}

// SHA256 returns the lowercase hex SHA-256 digest of s.
func SHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func short(hash string) string {
	if len(hash) <= shortHashLen {
		return hash
	}
	return hash[:shortHashLen]
}
