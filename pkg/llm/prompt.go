package llm

// DefaultPrompt instructs the model to summarize a health tech podcast for
// healthcare IT leaders.
const DefaultPrompt = `You are a healthcare technology analyst. Given the following transcript from a health tech podcast, perform the following tasks:

1. Generate a concise list of 3 key takeaways that capture the key points or themes discussed in the episode.

2. Extract and list all healthcare organizations, companies, and technologies that are mentioned, including startups, hospital systems, software platforms, devices, and standards (e.g., Epic, Mayo Clinic, HL7, AI triage tools).

3. Identify a list of 2-3 actionable insights or strategic recommendations for healthcare IT leaders based on the discussion. These should be practical takeaways they can apply to improve digital transformation, data strategy, cybersecurity, patient experience, or operational efficiency.
   - For each actionable insight, include a short, descriptive header that summarizes the main point, followed by a brief explanation.

Format your response in JSON format:

{
    "summary": ["...", "...", "..."],
    "mentioned_organizations": ["...", "..."],
    "actionable_insights": [
        {
            "header": "...",
            "detail": "..."
        },
        {
            "header": "...",
            "detail": "..."
        }
    ]
}`

// analysisSchema is the JSON schema the model output is constrained to.
var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"mentioned_organizations": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"actionable_insights": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"header": map[string]any{"type": "string"},
					"detail": map[string]any{"type": "string"},
				},
				"required":             []string{"header", "detail"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"summary", "mentioned_organizations", "actionable_insights"},
	"additionalProperties": false,
}
