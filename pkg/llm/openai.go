package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"transcript-insights/pkg/domain"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// OpenAIConfig configures the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Prompt  string
	Timeout time.Duration
	// DisableRetries turns off the SDK's automatic retries.
	DisableRetries bool
}

// OpenAI analyzes transcripts with the chat completions API and a strict JSON
// schema response format.
type OpenAI struct {
	client openai.Client
	model  string
	prompt string
	logger *slog.Logger
}

// NewOpenAI creates an analyzer from cfg.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.DisableRetries {
		opts = append(opts, option.WithMaxRetries(0))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		prompt: prompt,
		logger: logger,
	}, nil
}

func (o *OpenAI) ModelID() string { return "openai:" + o.model }

func (o *OpenAI) Prompt() string { return o.prompt }

// Analyze sends the prompt as a developer message and the transcript as the
// user message. Output that decodes into an analysis is returned parsed;
// anything else, including a refusal, is returned raw.
func (o *OpenAI) Analyze(ctx context.Context, transcript string) (Output, error) {
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.DeveloperMessage(o.prompt),
			openai.UserMessage("Transcript:\n\n" + transcript),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "transcript_analysis",
					Schema: analysisSchema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	o.logger.Info("[LLM] Completion received",
		slog.String("model", o.model),
		slog.Int64("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	if msg.Refusal != "" {
		return Raw(msg.Refusal), nil
	}
	return DecodeOutput(msg.Content), nil
}

// DecodeOutput returns a parsed Output when content is a JSON object
// carrying at least one analysis field, and a raw Output otherwise.
func DecodeOutput(content string) Output {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return Raw(content)
	}

	known := false
	for _, k := range []string{"summary", "mentioned_organizations", "actionable_insights"} {
		if _, ok := fields[k]; ok {
			known = true
			break
		}
	}
	if !known {
		return Raw(content)
	}

	var a domain.Analysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return Raw(content)
	}
	return Parsed(a)
}
