// Package llm sends prompts to a completion backend through langchaingo.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client completes a single prompt against a named model.
type Client interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

const (
	defaultTimeout     = 2 * time.Minute
	defaultBaseBackoff = time.Second
	maxBackoff         = 30 * time.Second
)

// Config selects and configures the backend.
type Config struct {
	Provider    string // "openai" or "anthropic"
	APIKey      string `json:"-"`
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

// generateFunc is the seam between retry handling and the backend.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// langchainClient retries transient failures with exponential backoff.
// Concurrency is bounded by the caller.
type langchainClient struct {
	generate    generateFunc
	maxRetries  int
	baseBackoff time.Duration
}

// New builds a Client for cfg.Provider.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	var model llms.Model
	switch cfg.Provider {
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model = m
	case "anthropic":
		// The anthropic backend takes no HTTP client or endpoint; the
		// per-call context deadline below bounds its requests.
		if cfg.BaseURL != "" {
			return nil, fmt.Errorf("anthropic provider does not support a base URL")
		}
		m, err := anthropic.New(anthropic.WithToken(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		model = m
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	temperature := cfg.Temperature
	return &langchainClient{
		generate: func(ctx context.Context, id, prompt string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return llms.GenerateFromSinglePrompt(ctx, model, prompt,
				llms.WithModel(id),
				llms.WithTemperature(temperature),
			)
		},
		maxRetries:  cfg.MaxRetries,
		baseBackoff: defaultBaseBackoff,
	}, nil
}

// Complete sends prompt to model, retrying rate limits and server errors.
func (c *langchainClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := c.generate(ctx, model, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
