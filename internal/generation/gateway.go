// Package generation calls an OpenAI-compatible chat completions endpoint
// to answer a question from retrieved context.
//
// The Gateway never returns an error. Rate limiting is retried with
// exponential backoff and every terminal failure is turned into a fixed
// user-facing string, so callers always have an answer to show.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fixed strings shown to users.
const (
	// RefusalAnswer is what the model is told to reply when the context
	// does not contain the answer.
	RefusalAnswer = "I cannot find the answer in the provided documents."

	SystemPrompt = "You are a Smart FAQ Bot. Answer the user's question strictly based on the provided context. " +
		"If the answer is not in the context, say '" + RefusalAnswer + "' " +
		"Keep answers concise and professional."

	BusyAnswer    = "Error: AI Service is busy (Rate Limit). Please try again later."
	FailureAnswer = "Error generating answer from AI service."
)

const defaultTimeout = 60 * time.Second

// Outcome classifies how a call ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// Result is the detailed result of a generation call.
type Result struct {
	Answer   string
	Outcome  Outcome
	Attempts int
}

// Config configures a Gateway.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   RetryPolicy
	// RequestsPerMinute throttles upstream requests client-side. Zero
	// disables throttling.
	RequestsPerMinute int
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithSleeper replaces the timer used between retries.
func WithSleeper(s Sleeper) Option {
	return func(g *Gateway) { g.sleep = s }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway sends chat completion requests.
type Gateway struct {
	url     string
	apiKey  string
	model   string
	client  *http.Client
	retry   RetryPolicy
	sleep   Sleeper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New validates cfg and returns a Gateway.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.URL == "" {
		return nil, errors.New("generation: endpoint URL required")
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("generation: max retries must be >= 0, got %d", cfg.Retry.MaxRetries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	g := &Gateway{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
		retry:  cfg.Retry,
		sleep:  RealSleeper,
		logger: zap.NewNop(),
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.apiKey == "" {
		g.logger.Warn("no LLM API key configured, requests will be sent unauthenticated")
	}
	return g, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var errRateLimited = errors.New("rate limited (429)")

// UserMessage formats the question and its context for the model.
func UserMessage(question, contextText string) string {
	return "Context:\n" + contextText + "\n\nQuestion: " + question
}

// Generate returns the model's answer or one of the fixed failure strings.
func (g *Gateway) Generate(ctx context.Context, question, contextText string) string {
	return g.GenerateDetailed(ctx, question, contextText).Answer
}

// GenerateDetailed is Generate plus the outcome and number of upstream
// requests made.
func (g *Gateway) GenerateDetailed(ctx context.Context, question, contextText string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("generation panicked", zap.Any("panic", r))
			res.Answer, res.Outcome = FailureAnswer, OutcomeError
		}
		requestsTotal.WithLabelValues(string(res.Outcome)).Inc()
		attemptsPerCall.Observe(float64(res.Attempts))
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserMessage(question, contextText)},
		},
	})
	if err != nil {
		g.logger.Error("marshaling chat request", zap.Error(err))
		return Result{Answer: FailureAnswer, Outcome: OutcomeError}
	}

	for attempt := 0; ; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				g.logger.Error("rate limiter wait", zap.Error(err))
				return Result{Answer: FailureAnswer, Outcome: OutcomeError, Attempts: attempt}
			}
		}

		answer, err := g.doRequest(ctx, body)
		if err == nil {
			return Result{Answer: answer, Outcome: OutcomeSuccess, Attempts: attempt + 1}
		}
		if !errors.Is(err, errRateLimited) {
			g.logger.Error("calling LLM", zap.Int("attempt", attempt+1), zap.Error(err))
			return Result{Answer: FailureAnswer, Outcome: OutcomeError, Attempts: attempt + 1}
		}
		if attempt >= g.retry.MaxRetries {
			g.logger.Warn("rate limit retries exhausted", zap.Int("attempts", attempt+1))
			return Result{Answer: BusyAnswer, Outcome: OutcomeRateLimited, Attempts: attempt + 1}
		}

		delay := g.retry.delay(attempt)
		g.logger.Warn("rate limit hit, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))
		// An abandoned wait is a failed call, not an exhausted retry budget.
		if err := g.sleep(ctx, delay); err != nil {
			g.logger.Error("retry wait interrupted", zap.Error(err))
			return Result{Answer: FailureAnswer, Outcome: OutcomeError, Attempts: attempt + 1}
		}
	}
}

func (g *Gateway) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", errRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
