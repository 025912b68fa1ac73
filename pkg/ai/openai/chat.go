package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	"github.com/openai/openai-go/v3"
)

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	duration := time.Since(start)

	c.Record(int(response.Usage.PromptTokens), int(response.Usage.CompletionTokens), duration)
	logger.Debug("[AI] OpenAI completion",
		"model", options.Model,
		"input_tokens", response.Usage.PromptTokens,
		"output_tokens", response.Usage.CompletionTokens,
		"duration", duration,
	)

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", ai.ErrEmptyResponse
	}
	return response.Choices[0].Message.Content, nil
}
