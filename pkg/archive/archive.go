// Package archive keeps an append-only history of computed analyses in
// Postgres or Supabase.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"transcript-insights/pkg/db"
	"transcript-insights/pkg/domain"
)

// Table is the archive table name.
const Table = "analysis_archive"

var errNotConnected = errors.New("archive database not connected")

// Archive records computed analyses.
type Archive interface {
	Append(ctx context.Context, rec domain.AnalysisRecord) error
}

// SQL appends records through a database/sql handle.
type SQL struct {
	source db.SQLSource
}

// NewSQL creates an archive over a connected source (Postgres or Supabase
// in direct mode).
func NewSQL(source db.SQLSource) *SQL {
	return &SQL{source: source}
}

// EnsureSchema creates the archive table if it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if s.source == nil || s.source.DB() == nil {
		return errNotConnected
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS analysis_archive (
  id BIGSERIAL PRIMARY KEY,
  cache_key TEXT NOT NULL,
  route TEXT NOT NULL,
  source_url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  extraction_source TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL,
  result JSONB NOT NULL,
  analyzed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := s.source.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", Table, err)
	}
	return nil
}

func (s *SQL) Append(ctx context.Context, rec domain.AnalysisRecord) error {
	if s.source == nil || s.source.DB() == nil {
		return errNotConnected
	}

	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	const insertQuery = `
INSERT INTO analysis_archive (cache_key, route, source_url, title, extraction_source, model, result, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.source.DB().ExecContext(ctx, insertQuery,
		rec.CacheKey, rec.Route, rec.SourceURL, rec.Title, rec.ExtractionSource, rec.Model, string(result), rec.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("insert %s key=%q: %w", Table, rec.CacheKey, err)
	}
	return nil
}

// SupabaseREST appends records through the Supabase REST API. It is used when
// only a project URL and key are configured. The table must already exist.
type SupabaseREST struct {
	client *supabase.Client
}

// NewSupabaseREST creates an archive over an initialized SDK client.
func NewSupabaseREST(client *supabase.Client) *SupabaseREST {
	return &SupabaseREST{client: client}
}

func (s *SupabaseREST) Append(_ context.Context, rec domain.AnalysisRecord) error {
	if s.client == nil {
		return errNotConnected
	}

	row := map[string]any{
		"cache_key":         rec.CacheKey,
		"route":             rec.Route,
		"source_url":        rec.SourceURL,
		"title":             rec.Title,
		"extraction_source": rec.ExtractionSource,
		"model":             rec.Model,
		"result":            rec.Result,
		"analyzed_at":       rec.AnalyzedAt,
	}
	if _, _, err := s.client.From(Table).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("supabase insert %s: %w", Table, err)
	}
	return nil
}

// FromSupabase picks the direct SQL archive when the client has a database
// connection and the REST archive otherwise.
func FromSupabase(ctx context.Context, client *db.SupabaseClient) (Archive, error) {
	if client.Mode() == db.SupabaseDirect {
		a := NewSQL(client)
		if err := a.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return a, nil
	}
	if client.SDK() == nil {
		return nil, errNotConnected
	}
	return NewSupabaseREST(client.SDK()), nil
}
