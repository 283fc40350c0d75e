// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// OpenAI API provider for scene generation

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony-level/scene-runner/internal/llm"
)

const (
	OpenAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIProvider uses OpenAI API to generate scenes
type OpenAIProvider struct {
	config *llm.ProviderConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI API provider
func NewOpenAIProvider(config *llm.ProviderConfig) (*OpenAIProvider, error) {
	token := llm.GetProviderToken(llm.ProviderOpenAI, config.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not found (set OPENAI_API_KEY or use --llm-token)", llm.ErrMissingToken)
	}
	config.Token = token

	return &OpenAIProvider{
		config: config.WithDefaults(),
		client: httpClient(config),
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ChatRequest is the chat completions request body, shared with the generic HTTP provider
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponse is the response from OpenAI API
type OpenAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func chatMessages(req *llm.Request) []ChatMessage {
	var msgs []ChatMessage
	if req.System != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, ChatMessage{Role: "user", Content: req.Prompt})
}

// Complete sends one chat completions request
func (p *OpenAIProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	model := p.config.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	endpoint := p.config.Endpoint
	if endpoint == "" {
		endpoint = OpenAIEndpoint
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	reqBody := ChatRequest{
		Model:       model,
		Messages:    chatMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + p.config.Token}

	body, err := postJSON(ctx, p.client, p.config, endpoint, headers, reqBody, apiErrorMessage)
	if err != nil {
		return "", err
	}
	return p.parseResponse(body)
}

func (p *OpenAIProvider) parseResponse(body []byte) (string, error) {
	var resp OpenAIResponse
	if err := decodeJSON(body, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", llm.ErrProviderRejected, resp.Error.Message)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
