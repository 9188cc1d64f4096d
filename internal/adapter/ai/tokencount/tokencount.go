// Package tokencount estimates token usage for chat-completion calls.
//
// Providers usually report usage in the response body; this package covers
// the cases where they do not, using tiktoken-go with a chars/4 fallback.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Usage is the token accounting for one chat call.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

// Counter provides thread-safe token counting with a per-model encoding cache.
type Counter struct {
	mu            sync.RWMutex
	encodingCache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	normalized := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalized]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[normalized]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalized)
	if err != nil {
		// cl100k_base is the encoding of GPT-4 class models and a fair
		// approximation for the open-weight families we route to.
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalized] = enc
	return enc, nil
}

// normalizeModelName converts provider model IDs to tiktoken-compatible names.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)

	// Router-style IDs carry a provider prefix, e.g. "meta-llama/llama-3.3-70b".
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")

	switch {
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		// Llama, Mistral, Qwen, DeepSeek and friends tokenize close enough
		// to GPT-4 for accounting purposes.
		return "gpt-4"
	}
}

// CountTokens counts the tokens of a plain text string for a given model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountChatTokens counts prompt tokens for a two-message chat request,
// including the per-message framing overhead of OpenAI-compatible APIs.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) (int, error) {
	enc, err := c.encodingFor(model)
	if err != nil {
		return 0, err
	}

	// 3 tokens per message plus 1 for the role, and 3 priming the reply.
	const tokensPerMessage, tokensPerRole = 3, 1
	n := 0
	n += tokensPerMessage + tokensPerRole
	n += len(enc.Encode("system", nil, nil))
	n += len(enc.Encode(systemPrompt, nil, nil))
	n += tokensPerMessage + tokensPerRole
	n += len(enc.Encode("user", nil, nil))
	n += len(enc.Encode(userPrompt, nil, nil))
	n += 3
	return n, nil
}

// EstimateUsage calculates full token usage for one chat completion, falling
// back to a rough chars/4 estimate when the encoder fails.
func (c *Counter) EstimateUsage(systemPrompt, userPrompt, completion, model string) Usage {
	promptTokens, err := c.CountChatTokens(systemPrompt, userPrompt, model)
	if err != nil {
		slog.Warn("failed to count prompt tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		promptTokens = (len(systemPrompt) + len(userPrompt)) / 4
	}

	completionTokens, err := c.CountTokens(completion, model)
	if err != nil {
		slog.Warn("failed to count completion tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		completionTokens = len(completion) / 4
	}

	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Model:            model,
	}
}
