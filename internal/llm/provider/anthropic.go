// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Anthropic API provider for scene generation (recommended default)

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony-level/scene-runner/internal/llm"
)

const (
	AnthropicEndpoint     = "https://api.anthropic.com/v1/messages"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	AnthropicAPIVersion   = "2023-06-01"
)

// AnthropicProvider uses Anthropic API to generate scenes
type AnthropicProvider struct {
	config *llm.ProviderConfig
	client *http.Client
}

// NewAnthropicProvider creates a new Anthropic API provider
func NewAnthropicProvider(config *llm.ProviderConfig) (*AnthropicProvider, error) {
	token := llm.GetProviderToken(llm.ProviderAnthropic, config.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: Anthropic API key not found (set ANTHROPIC_API_KEY or use --llm-token)", llm.ErrMissingToken)
	}
	config.Token = token

	return &AnthropicProvider{
		config: config.WithDefaults(),
		client: httpClient(config),
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// AnthropicRequest is the request body for Anthropic API
type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

// AnthropicMessage represents a chat message
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse is the response from Anthropic API
type AnthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one Messages API request
func (p *AnthropicProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	model := p.config.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	endpoint := p.config.Endpoint
	if endpoint == "" {
		endpoint = AnthropicEndpoint
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	reqBody := AnthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages: []AnthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
	}

	headers := map[string]string{
		"x-api-key":         p.config.Token,
		"anthropic-version": AnthropicAPIVersion,
	}

	body, err := postJSON(ctx, p.client, p.config, endpoint, headers, reqBody, apiErrorMessage)
	if err != nil {
		return "", err
	}
	return p.parseResponse(body)
}

func (p *AnthropicProvider) parseResponse(body []byte) (string, error) {
	var resp AnthropicResponse
	if err := decodeJSON(body, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", llm.ErrProviderRejected, resp.Error.Message)
	}

	for _, c := range resp.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text, nil
		}
	}
	return "", llm.ErrEmptyResponse
}
