package analysis

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/agrisight-io/agrisight/internal/pkg/metrics"
	"github.com/agrisight-io/agrisight/pkg/options"
)

// Completer answers a single grounded question about one evidence image.
// The reply is the raw model text; the pipeline owns parsing and validation.
type Completer interface {
	Complete(ctx context.Context, system, user, imageURL string) (string, error)
}

// openAICompleter talks to an OpenAI-compatible completion endpoint.
type openAICompleter struct {
	client      *openai.LLM
	temperature float64
	maxTokens   int
	callTimeout time.Duration
}

// NewOpenAICompleter builds a Completer from the given options.
func NewOpenAICompleter(o *options.LLMOptions) (Completer, error) {
	opts := []openai.Option{
		openai.WithToken(o.ResolvedAPIKey()),
		openai.WithModel(o.Model),
	}
	if o.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(o.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	return &openAICompleter{
		client:      client,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		callTimeout: o.CallTimeout,
	}, nil
}

func (c *openAICompleter) Complete(ctx context.Context, system, user, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(user),
				llms.ImageURLPart(imageURL),
			},
		},
	}

	start := time.Now()
	resp, err := c.client.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
		llms.WithJSONMode(),
	)
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
