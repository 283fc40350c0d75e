// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// HTTP LLM provider for custom endpoints

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony-level/scene-runner/internal/llm"
)

// HTTPProvider calls a custom chat endpoint (OpenAI-compatible gateways, self-hosted models)
type HTTPProvider struct {
	config *llm.ProviderConfig
	client *http.Client
}

// NewHTTPProvider creates a new HTTP LLM provider
func NewHTTPProvider(config *llm.ProviderConfig) (*HTTPProvider, error) {
	if config.Endpoint == "" {
		return nil, llm.ErrMissingEndpoint
	}
	config.Token = llm.GetProviderToken(llm.ProviderHTTP, config.Token)

	return &HTTPProvider{
		config: config.WithDefaults(),
		client: httpClient(config),
	}, nil
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return "http"
}

// HTTPResponse accepts the common reply shapes of chat gateways
type HTTPResponse struct {
	Content string `json:"content"` // Direct content field
	Message struct {
		Content string `json:"content"`
	} `json:"message"` // Ollama-style
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"` // OpenAI-style array
	Error json.RawMessage `json:"error,omitempty"`
}

// Complete posts the chat request to the configured endpoint
func (p *HTTPProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	reqBody := ChatRequest{
		Model:       p.config.Model,
		Messages:    chatMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	var headers map[string]string
	if p.config.Token != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.config.Token}
	}

	body, err := postJSON(ctx, p.client, p.config, p.config.Endpoint, headers, reqBody, apiErrorMessage)
	if err != nil {
		return "", err
	}
	return p.parseResponse(body)
}

func (p *HTTPProvider) parseResponse(body []byte) (string, error) {
	var resp HTTPResponse
	if err := decodeJSON(body, &resp); err != nil {
		return "", err
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		msg := apiErrorMessage(body)
		if msg == "" {
			var s string
			if json.Unmarshal(resp.Error, &s) == nil {
				msg = s
			} else {
				msg = string(resp.Error)
			}
		}
		return "", fmt.Errorf("%w: %s", llm.ErrProviderRejected, msg)
	}

	content := resp.Content
	if content == "" {
		content = resp.Message.Content
	}
	if content == "" && len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}
