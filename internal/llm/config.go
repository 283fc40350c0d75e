// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Credential lookup and local model detection

package llm

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

// TokenEnv is the provider-independent credential variable
const TokenEnv = "SRN_LLM_TOKEN"

// GetProviderToken returns the appropriate token for a provider type.
// An explicit token wins over the environment.
func GetProviderToken(providerType ProviderType, configToken string) string {
	if configToken != "" {
		return configToken
	}

	switch providerType {
	case ProviderOpenAI:
		if token := os.Getenv("OPENAI_API_KEY"); token != "" {
			return token
		}
	case ProviderAnthropic:
		if token := os.Getenv("ANTHROPIC_API_KEY"); token != "" {
			return token
		}
	case ProviderOllama, ProviderMock:
		return "" // No token needed
	}
	return os.Getenv(TokenEnv)
}

// OllamaBaseURL returns the local Ollama address, honouring OLLAMA_HOST
func OllamaBaseURL() string {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		return "http://localhost:11434"
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/")
}

// IsOllamaAvailable checks if Ollama is running locally
func IsOllamaAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, OllamaBaseURL()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
