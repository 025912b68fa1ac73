package ollama

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultContextTokens = 4096
	// headroom for the chat template
	contextHeadroom = 200
)

// countTokens counts prompt tokens with o200k_base. Without the encoding
// (offline, no cache) it falls back to three runes per token.
func countTokens(prompt string) int {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return utf8.RuneCountInString(prompt)/3 + 1
	}
	return len(enc.Encode(prompt, nil, nil))
}

// contextWindow estimates the num_ctx needed for prompt plus answer. It
// returns 0 when the server default is large enough.
func contextWindow(prompt string, maxTokens int) int {
	tokens := countTokens(prompt) + contextHeadroom + maxTokens
	if tokens <= defaultContextTokens {
		return 0
	}
	return tokens
}
