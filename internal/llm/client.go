// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Generation client with bounded retries

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Client defaults
const (
	DefaultMaxPromptLength = 4000
	DefaultRetryBackoff    = time.Second
	maxRetryBackoff        = 30 * time.Second
)

// ClientConfig configures a generation client
type ClientConfig struct {
	MaxRetries      int           // Extra attempts after the first; 0 disables retry
	RetryBackoff    time.Duration // Initial backoff, doubled per attempt
	MaxPromptLength int           // Bound on prompt length in runes
	MaxTokens       int
	Temperature     float64
	SceneName       string
	Log             *zap.Logger
}

// Client turns a user prompt into a raw model reply
type Client struct {
	provider Provider
	builder  *PromptBuilder
	config   ClientConfig
	log      *zap.Logger
}

// NewClient creates a generation client around provider
func NewClient(provider Provider, config ClientConfig) *Client {
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.MaxPromptLength <= 0 {
		config.MaxPromptLength = DefaultMaxPromptLength
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature <= 0 {
		config.Temperature = DefaultTemperature
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	return &Client{
		provider: provider,
		builder:  NewPromptBuilder(config.SceneName),
		config:   config,
		log:      config.Log.Named("llm"),
	}
}

// Provider returns the wrapped provider
func (c *Client) Provider() Provider {
	return c.provider
}

// ValidatePrompt rejects empty and over-long prompts
func (c *Client) ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	if n := utf8.RuneCountInString(prompt); n > c.config.MaxPromptLength {
		return &ValidationError{
			Field:   "prompt",
			Message: fmt.Sprintf("prompt is %d characters, limit is %d", n, c.config.MaxPromptLength),
		}
	}
	return nil
}

// Generate asks the model for scene source code and returns its raw reply
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.ValidatePrompt(prompt); err != nil {
		return "", err
	}

	req := &Request{
		System:      c.builder.SystemInstruction(),
		Prompt:      c.builder.BuildScenePrompt(prompt),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	backoff := c.config.RetryBackoff
	attempts := c.config.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		reply, err := c.provider.Complete(ctx, req)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			c.log.Debug("generation complete",
				zap.String("provider", c.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Int("reply_bytes", len(reply)),
				zap.Duration("duration", time.Since(start)))
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !IsRetryable(err) || attempt == attempts {
			break
		}

		c.log.Warn("generation attempt failed",
			zap.String("provider", c.provider.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}

	return "", fmt.Errorf("%s generation failed: %w", c.provider.Name(), lastErr)
}
