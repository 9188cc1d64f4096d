// Package ai implements the chat-completion client with retry, rate-limit
// parsing, model fallback, cost accounting, and a per-job circuit breaker.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/signalforge/opportunity-miner/internal/adapter/ai/tokencount"
	"github.com/signalforge/opportunity-miner/internal/adapter/observability"
	"github.com/signalforge/opportunity-miner/internal/domain"
)

// RateLimiter is consulted before each provider call. The returned duration
// is how long the caller should wait before proceeding; it is advisory and
// errors never fail the call.
type RateLimiter interface {
	Reserve(ctx domain.Context, model string) (time.Duration, error)
}

// Options configures a Client. Zero durations fall back to the defaults
// noted on each field.
type Options struct {
	APIKey        string
	BaseURL       string
	FallbackModel string

	MaxAttempts       int           // per model, default 5
	RateLimitBase     time.Duration // 429 backoff base, default 60s
	ServerRetryBase   time.Duration // 5xx backoff base, default 2s
	ServerRetryCap    time.Duration // 5xx backoff ceiling, default 60s
	IdeationTimeout   time.Duration // default 60s
	ValidationTimeout time.Duration // default 90s
}

func (o *Options) defaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 5
	}
	if o.RateLimitBase == 0 {
		o.RateLimitBase = 60 * time.Second
	}
	if o.ServerRetryBase == 0 {
		o.ServerRetryBase = 2 * time.Second
	}
	if o.ServerRetryCap == 0 {
		o.ServerRetryCap = 60 * time.Second
	}
	if o.IdeationTimeout == 0 {
		o.IdeationTimeout = 60 * time.Second
	}
	if o.ValidationTimeout == 0 {
		o.ValidationTimeout = 90 * time.Second
	}
}

// Client implements domain.ChatClient against an OpenAI-compatible
// chat-completions endpoint. One Client lives per job: the ledger and
// breaker it carries are job-scoped.
type Client struct {
	opts    Options
	hc      *http.Client
	ledger  *domain.CostLedger
	breaker *CircuitBreaker
	counter *tokencount.Counter
	limiter RateLimiter

	// sleep is swapped out in tests.
	sleep func(ctx domain.Context, d time.Duration) error
}

// NewClient constructs a per-job chat client. limiter may be nil.
func NewClient(opts Options, ledger *domain.CostLedger, breaker *CircuitBreaker, limiter RateLimiter) *Client {
	opts.defaults()
	return &Client{
		opts:    opts,
		hc:      &http.Client{},
		ledger:  ledger,
		breaker: breaker,
		counter: tokencount.NewCounter(),
		limiter: limiter,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx domain.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FallbackMode reports whether the breaker latched degraded mode.
func (c *Client) FallbackMode() bool { return c.breaker.FallbackMode() }

// retryAfterRe matches provider hints of the form "Please try again in 12.34s".
var retryAfterRe = regexp.MustCompile(`(?i)try again in\s+([0-9]+(?:\.[0-9]+)?)s`)

// httpError carries a non-2xx provider response through the retry loop.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string { return fmt.Sprintf("chat status %d", e.status) }

// errModelExhausted signals a per-day limit on the current model.
var errModelExhausted = errors.New("model daily limit exhausted")

// errAttemptsExhausted marks a model that burned its full attempt budget
// without a permanent error; the next model in the ladder gets a fresh one.
var errAttemptsExhausted = errors.New("attempt budget exhausted")

// Complete issues one JSON-mode chat call with the full retry and fallback
// discipline. While the breaker is open it returns an empty object so the
// pipeline degrades instead of queueing on a failing provider.
func (c *Client) Complete(ctx domain.Context, req domain.ChatRequest) (json.RawMessage, error) {
	if c.opts.APIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}
	if !c.breaker.Allow() {
		slog.Warn("circuit open, short-circuiting llm call",
			slog.String("model", req.Model), slog.String("kind", req.Kind))
		observability.ObserveLLMRequest(req.Model, req.Kind, "circuit_open", 0, 0)
		return json.RawMessage("{}"), nil
	}

	models := []string{req.Model}
	if c.opts.FallbackModel != "" && c.opts.FallbackModel != req.Model {
		models = append(models, c.opts.FallbackModel)
	}

	var lastErr error
	for _, model := range models {
		out, err := c.completeOnModel(ctx, model, req)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, errModelExhausted):
			slog.Warn("model daily limit exhausted, falling back",
				slog.String("model", model), slog.String("kind", req.Kind))
			lastErr = fmt.Errorf("op=ai.complete model=%s: %w", model, domain.ErrDailyLimitExceeded)
		case errors.Is(err, errAttemptsExhausted):
			slog.Warn("model attempt budget exhausted, falling back",
				slog.String("model", model), slog.String("kind", req.Kind))
			lastErr = err
		default:
			// Permanent errors and cancellations do not improve on another
			// model.
			return nil, err
		}
	}
	return nil, lastErr
}

// completeOnModel runs the per-model attempt loop.
func (c *Client) completeOnModel(ctx domain.Context, model string, req domain.ChatRequest) (json.RawMessage, error) {
	serverBackoff := c.newServerBackoff()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if wait, err := c.limiter.Reserve(ctx, model); err == nil && wait > 0 {
				slog.Debug("rate limiter backpressure",
					slog.String("model", model), slog.Duration("wait", wait))
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
		}

		out, err := c.doOnce(ctx, model, req)
		if err == nil {
			c.breaker.RecordSuccess()
			return out, nil
		}
		c.breaker.RecordFailure()
		lastErr = err

		var he *httpError
		switch {
		case errors.As(err, &he) && he.status == http.StatusTooManyRequests:
			if strings.Contains(strings.ToLower(he.body), "requests per day") {
				return nil, errModelExhausted
			}
			delay := c.rateLimitDelay(he.body, attempt)
			slog.Warn("provider rate limited, waiting",
				slog.String("model", model), slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		case errors.As(err, &he) && he.status >= 400 && he.status < 500:
			// Client errors do not improve with retries.
			return nil, fmt.Errorf("op=ai.complete model=%s status=%d: %w", model, he.status, domain.ErrInternal)
		case errors.Is(err, domain.ErrMalformedResponse):
			slog.Warn("malformed model response, retrying",
				slog.String("model", model), slog.Int("attempt", attempt))
		default:
			// 5xx or transport failure.
			delay := serverBackoff.NextBackOff()
			if delay == backoff.Stop {
				delay = c.opts.ServerRetryCap
			}
			slog.Warn("provider server error, backing off",
				slog.String("model", model), slog.Int("attempt", attempt),
				slog.Duration("delay", delay), slog.Any("error", err))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("op=ai.complete model=%s attempts=%d: %w: %w", model, c.opts.MaxAttempts, errAttemptsExhausted, lastErr)
}

// newServerBackoff builds the 5xx schedule: base×2^(n−1), capped.
func (c *Client) newServerBackoff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.ServerRetryBase
	expo.Multiplier = 2
	expo.MaxInterval = c.opts.ServerRetryCap
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	return expo
}

// rateLimitDelay honors the provider's retry hint when present:
// max(hint+5s, base×attempt).
func (c *Client) rateLimitDelay(body string, attempt int) time.Duration {
	scaled := time.Duration(attempt) * c.opts.RateLimitBase
	m := retryAfterRe.FindStringSubmatch(body)
	if m == nil {
		return scaled
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return scaled
	}
	hinted := time.Duration(secs*float64(time.Second)) + 5*time.Second
	if hinted > scaled {
		return hinted
	}
	return scaled
}

func (c *Client) timeoutFor(kind string) time.Duration {
	if kind == domain.CallValidation {
		return c.opts.ValidationTimeout
	}
	return c.opts.IdeationTimeout
}

// doOnce issues a single HTTP attempt and accounts its cost on success.
func (c *Client) doOnce(ctx domain.Context, model string, req domain.ChatRequest) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(req.Kind))
	defer cancel()

	body := map[string]any{
		"model":           model,
		"temperature":     req.Temperature,
		"max_tokens":      req.MaxTokens,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
	}
	b, _ := json.Marshal(body)

	start := time.Now()
	r, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("op=ai.request: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	r.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(r)
	if err != nil {
		observability.ObserveLLMRequest(model, req.Kind, "transport_error", time.Since(start), 0)
		return nil, fmt.Errorf("op=ai.do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		observability.ObserveLLMRequest(model, req.Kind, "read_error", time.Since(start), 0)
		return nil, fmt.Errorf("op=ai.read: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome := "server_error"
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = "rate_limited"
		} else if resp.StatusCode < 500 {
			outcome = "client_error"
		}
		observability.ObserveLLMRequest(model, req.Kind, outcome, time.Since(start), 0)
		snippet := string(respBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &httpError{status: resp.StatusCode, body: snippet}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		observability.ObserveLLMRequest(model, req.Kind, "decode_error", time.Since(start), 0)
		return nil, fmt.Errorf("op=ai.decode: %w", domain.ErrMalformedResponse)
	}
	if len(out.Choices) == 0 {
		observability.ObserveLLMRequest(model, req.Kind, "empty_choices", time.Since(start), 0)
		return nil, fmt.Errorf("op=ai.decode empty choices: %w", domain.ErrMalformedResponse)
	}
	content := out.Choices[0].Message.Content

	parsed, err := ParseJSONObject(content)
	if err != nil {
		observability.ObserveLLMRequest(model, req.Kind, "malformed", time.Since(start), 0)
		return nil, err
	}

	var promptTok, complTok int
	if out.Usage != nil {
		promptTok, complTok = out.Usage.PromptTokens, out.Usage.CompletionTokens
	} else {
		est := c.counter.EstimateUsage(req.System, req.User, content, model)
		promptTok, complTok = est.PromptTokens, est.CompletionTokens
	}
	cost := CostUSD(model, promptTok, complTok)
	c.ledger.Record(model, req.Kind, promptTok, complTok, cost)
	observability.ObserveLLMRequest(model, req.Kind, "ok", time.Since(start), cost)

	return parsed, nil
}
