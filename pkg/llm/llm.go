// Package llm turns transcripts into structured analyses using a language
// model.
package llm

import (
	"context"
	"errors"

	"transcript-insights/pkg/domain"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Analyzer produces an analysis of a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (Output, error)
	// ModelID identifies the provider and model, e.g. "openai:gpt-4o-mini".
	ModelID() string
	// Prompt is the instruction text sent with every transcript.
	Prompt() string
}

// Output is what a model returned: either a decoded analysis or raw text
// that did not decode. Exactly one of the two is set.
type Output struct {
	parsed *domain.Analysis
	raw    string
}

// Parsed wraps a decoded analysis.
func Parsed(a domain.Analysis) Output {
	return Output{parsed: &a}
}

// Raw wraps model text that is not a decoded analysis.
func Raw(s string) Output {
	return Output{raw: s}
}

// Analysis returns the decoded analysis, if any.
func (o Output) Analysis() (domain.Analysis, bool) {
	if o.parsed == nil {
		return domain.Analysis{}, false
	}
	return *o.parsed, true
}

// Text returns the raw text when the output is not a decoded analysis.
func (o Output) Text() (string, bool) {
	if o.parsed != nil {
		return "", false
	}
	return o.raw, true
}
