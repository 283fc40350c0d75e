// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Provider registration - registers all providers with the LLM registry

package provider

import (
	"github.com/sony-level/scene-runner/internal/llm"
)

func init() {
	RegisterProviders(llm.DefaultRegistry)
}

// RegisterProviders registers all built-in providers with reg
func RegisterProviders(reg *llm.Registry) {
	reg.Register(llm.ProviderMock, func(config *llm.ProviderConfig) (llm.Provider, error) {
		return NewMockProvider(), nil
	})

	reg.Register(llm.ProviderOpenAI, func(config *llm.ProviderConfig) (llm.Provider, error) {
		return NewOpenAIProvider(config)
	})

	reg.Register(llm.ProviderAnthropic, func(config *llm.ProviderConfig) (llm.Provider, error) {
		return NewAnthropicProvider(config)
	})

	reg.Register(llm.ProviderOllama, func(config *llm.ProviderConfig) (llm.Provider, error) {
		return NewOllamaProvider(config)
	})

	reg.Register(llm.ProviderHTTP, func(config *llm.ProviderConfig) (llm.Provider, error) {
		return NewHTTPProvider(config)
	})
}
