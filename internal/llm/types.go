// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// LLM types and interfaces for scene generation

package llm

import "context"

// ProviderType identifies the LLM provider
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
	ProviderHTTP      ProviderType = "http"
	ProviderMock      ProviderType = "mock"
)

// SupportedProviders lists all provider types
var SupportedProviders = []ProviderType{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderOllama,
	ProviderHTTP,
	ProviderMock,
}

// Provider interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string
	// Complete sends one request and returns the raw reply text.
	// Implementations make exactly one attempt; retries belong to Client.
	Complete(ctx context.Context, req *Request) (string, error)
}

// Request is a single completion request
type Request struct {
	System      string  // System instruction
	Prompt      string  // User message
	MaxTokens   int     // Upper bound on generated tokens
	Temperature float64 // Sampling temperature
}

// ValidationError represents an invalid generation request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error in " + e.Field + ": " + e.Message
}
