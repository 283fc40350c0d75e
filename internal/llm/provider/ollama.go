// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Ollama provider for local LLM inference (no API key required)

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony-level/scene-runner/internal/llm"
)

const DefaultOllamaModel = "llama3.2"

// OllamaProvider uses local Ollama instance to generate scenes
type OllamaProvider struct {
	config *llm.ProviderConfig
	client *http.Client
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config *llm.ProviderConfig) (*OllamaProvider, error) {
	if config.Endpoint == "" {
		config.Endpoint = llm.OllamaBaseURL() + "/api/chat"
	}

	return &OllamaProvider{
		config: config.WithDefaults(),
		client: httpClient(config),
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// OllamaRequest is the request body for Ollama API
type OllamaRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *OllamaOptions `json:"options,omitempty"`
}

// OllamaOptions contains model options
type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// OllamaResponse is the response from Ollama API
type OllamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Complete sends one non-streaming chat request
func (p *OllamaProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	model := p.config.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	reqBody := OllamaRequest{
		Model:    model,
		Messages: chatMessages(req),
		Stream:   false,
		Options: &OllamaOptions{
			Temperature: req.Temperature,
			NumPredict:  maxTokens,
		},
	}

	body, err := postJSON(ctx, p.client, p.config, p.config.Endpoint, nil, reqBody, ollamaErrorMessage)
	if err != nil {
		return "", err
	}

	var resp OllamaResponse
	if err := decodeJSON(body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", llm.ErrProviderRejected, resp.Error)
	}
	if resp.Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Message.Content, nil
}

func ollamaErrorMessage(body []byte) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		return resp.Error
	}
	return ""
}
