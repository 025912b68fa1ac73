package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash"

// GraphGeminiClient implements ai.GraphAIClient on the Gemini API.
type GraphGeminiClient struct {
	ai.MetricsRecorder

	chatModel string

	Client *genai.Client
}

// NewGraphGeminiClientParams configures a GraphGeminiClient. BaseURL is only
// needed for proxies and tests.
type NewGraphGeminiClientParams struct {
	ChatModel string
	APIKey    string
	BaseURL   string
}

func NewGraphGeminiClient(ctx context.Context, params NewGraphGeminiClientParams) (*GraphGeminiClient, error) {
	if params.APIKey == "" {
		return nil, fmt.Errorf("gemini client requires an api key")
	}
	cfg := &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if params.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: params.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	model := params.ChatModel
	if model == "" {
		model = DefaultModel
	}
	return &GraphGeminiClient{chatModel: model, Client: client}, nil
}

// GenerateCompletion sends a single-turn prompt and returns the answer text.
// JSON is requested as response MIME type.
func (c *GraphGeminiClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(options.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(options.MaxTokens)
	}
	if len(options.SystemPrompts) > 0 {
		parts := make([]*genai.Part, 0, len(options.SystemPrompts))
		for _, sp := range options.SystemPrompts {
			parts = append(parts, genai.NewPartFromText(sp))
		}
		cfg.SystemInstruction = &genai.Content{Parts: parts}
	}

	start := time.Now()
	resp, err := c.Client.Models.GenerateContent(ctx, options.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	duration := time.Since(start)

	var in, out int
	if resp.UsageMetadata != nil {
		in = int(resp.UsageMetadata.PromptTokenCount)
		out = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	c.Record(in, out, duration)
	logger.Debug("[AI] Gemini completion",
		"model", options.Model,
		"input_tokens", in,
		"output_tokens", out,
		"duration", duration,
	)

	text := resp.Text()
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
