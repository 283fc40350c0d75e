// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// LLM provider configuration and errors

package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Default timeouts
const (
	DefaultTimeout = 60 * time.Second
	MaxTimeout     = 300 * time.Second
)

// Default request bounds
const (
	DefaultMaxReplyBytes = 256 << 10
	DefaultMaxTokens     = 4096
	DefaultTemperature   = 0.2
)

// Provider errors
var (
	ErrUnknownProvider  = errors.New("unknown provider type")
	ErrMissingEndpoint  = errors.New("HTTP provider requires endpoint")
	ErrMissingToken     = errors.New("provider requires API token")
	ErrTimeout          = errors.New("LLM request timed out")
	ErrTransport        = errors.New("LLM transport failure")
	ErrEmptyResponse    = errors.New("LLM returned empty response")
	ErrInvalidResponse  = errors.New("LLM returned invalid response")
	ErrReplyTooLarge    = errors.New("LLM reply exceeds size limit")
	ErrProviderRejected = errors.New("LLM provider returned an error")
)

// StatusError is a non-success HTTP status from the model service
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsRetryable reports whether err is a transient generation failure
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}

// ProviderConfig holds configuration for LLM providers
type ProviderConfig struct {
	Type          ProviderType  // Provider type: anthropic, openai, ollama, http, mock
	Endpoint      string        // Endpoint URL override
	Model         string        // Model name (optional)
	Token         string        // Authentication token
	Timeout       time.Duration // Per-attempt request timeout
	MaxTokens     int           // Generated token bound sent with each request
	MaxReplyBytes int64         // Response body bound
	HTTPClient    *http.Client  // Optional transport override
}

// Validate checks if the provider config is valid
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderHTTP:
		if c.Endpoint == "" {
			return ErrMissingEndpoint
		}
	case ProviderOpenAI, ProviderAnthropic:
		if GetProviderToken(c.Type, c.Token) == "" {
			return fmt.Errorf("%w: %s", ErrMissingToken, c.Type)
		}
	case ProviderOllama, ProviderMock:
		// No validation required
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Type)
	}
	return nil
}

// WithDefaults applies default values to the config
func (c *ProviderConfig) WithDefaults() *ProviderConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout > MaxTimeout {
		c.Timeout = MaxTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxReplyBytes <= 0 {
		c.MaxReplyBytes = DefaultMaxReplyBytes
	}
	return c
}

// MaskToken returns a masked version of the token for logging
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
