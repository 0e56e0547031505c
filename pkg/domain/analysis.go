package domain

import "encoding/json"

// Insight is a single actionable recommendation derived from a transcript.
type Insight struct {
	Header string `json:"header"`
	Detail string `json:"detail"`
}

// Analysis is the structured output the language model is asked to produce.
type Analysis struct {
	Summary                []string  `json:"summary"`
	MentionedOrganizations []string  `json:"mentioned_organizations"`
	ActionableInsights     []Insight `json:"actionable_insights"`
}

// Result is what callers of the analysis flows receive.
//
// Exactly one shape is populated: the analysis fields, Raw (model output that
// could not be decoded as an analysis) or Error.
type Result struct {
	Summary                []string  `json:"summary,omitempty"`
	MentionedOrganizations []string  `json:"mentioned_organizations,omitempty"`
	ActionableInsights     []Insight `json:"actionable_insights,omitempty"`

	Raw   string `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

// ResultFromAnalysis converts a decoded analysis into a Result.
func ResultFromAnalysis(a Analysis) Result {
	return Result{
		Summary:                a.Summary,
		MentionedOrganizations: a.MentionedOrganizations,
		ActionableInsights:     a.ActionableInsights,
	}
}

// MarshalJSON writes exactly one shape. The analysis shape always carries
// all three lists, empty ones as [].
func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Error != "":
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	case r.Raw != "":
		return json.Marshal(struct {
			Raw string `json:"raw"`
		}{r.Raw})
	}

	a := Analysis{
		Summary:                r.Summary,
		MentionedOrganizations: r.MentionedOrganizations,
		ActionableInsights:     r.ActionableInsights,
	}
	if a.Summary == nil {
		a.Summary = []string{}
	}
	if a.MentionedOrganizations == nil {
		a.MentionedOrganizations = []string{}
	}
	if a.ActionableInsights == nil {
		a.ActionableInsights = []Insight{}
	}
	return json.Marshal(a)
}

// IsError reports whether the result carries an error message.
func (r Result) IsError() bool {
	return r.Error != ""
}
