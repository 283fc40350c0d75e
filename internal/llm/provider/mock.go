// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Mock LLM provider for testing and offline dry runs

package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/sony-level/scene-runner/internal/llm"
)

// MockScene is a minimal scene that renders in a few seconds
const MockScene = `from manim import *


class GeneratedScene(Scene):
    def construct(self):
        circle = Circle(color=BLUE)
        self.play(Create(circle))
        self.wait(1)
`

// MockProvider returns a fixed reply without any network access.
// It is only used when explicitly selected.
type MockProvider struct {
	reply string
	err   error

	mu       sync.Mutex
	requests []llm.Request
}

// NewMockProvider creates a mock that replies with MockScene in a code block
func NewMockProvider() *MockProvider {
	return &MockProvider{reply: fmt.Sprintf("Here is the scene:\n\n```python\n%s```\n", MockScene)}
}

// NewMockProviderWithReply creates a mock with a specific reply
func NewMockProviderWithReply(reply string) *MockProvider {
	return &MockProvider{reply: reply}
}

// NewMockProviderWithError creates a mock that always fails with err
func NewMockProviderWithError(err error) *MockProvider {
	return &MockProvider{err: err}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Complete records the request and returns the fixed reply
func (p *MockProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()

	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// Requests returns the requests received so far
func (p *MockProvider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.requests...)
}
