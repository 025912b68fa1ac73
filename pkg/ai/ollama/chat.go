package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	"github.com/ollama/ollama/api"
)

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if c.jsonMode {
		req.Format = json.RawMessage(`"json"`)
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}

	if numCtx := contextWindow(prompt, options.MaxTokens); numCtx > 0 {
		req.Options["num_ctx"] = numCtx
	}

	start := time.Now()
	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	duration := final.Metrics.TotalDuration
	if duration == 0 {
		duration = time.Since(start)
	}
	c.Record(final.Metrics.PromptEvalCount, final.Metrics.EvalCount, duration)
	logger.Debug("[AI] Ollama completion",
		"model", options.Model,
		"input_tokens", final.Metrics.PromptEvalCount,
		"output_tokens", final.Metrics.EvalCount,
		"duration", duration,
	)

	if final.Message.Content == "" {
		return "", ai.ErrEmptyResponse
	}
	return final.Message.Content, nil
}
