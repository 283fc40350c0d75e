// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for the generation client

package llm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony-level/scene-runner/internal/llm"
)

// scriptedProvider returns the queued results in order
type scriptedProvider struct {
	mu      sync.Mutex
	results []error
	calls   int
	last    *llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = req
	if len(p.results) == 0 {
		return "```python\nprint(1)\n```", nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	if err != nil {
		return "", err
	}
	return "```python\nprint(1)\n```", nil
}

func TestGenerate_Success(t *testing.T) {
	prov := &scriptedProvider{}
	client := llm.NewClient(prov, llm.ClientConfig{SceneName: "MyScene"})

	reply, err := client.Generate(context.Background(), "draw a circle")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(reply, "print(1)") {
		t.Errorf("reply = %q", reply)
	}
	if prov.calls != 1 {
		t.Errorf("calls = %d, want 1", prov.calls)
	}
	if !strings.Contains(prov.last.Prompt, "draw a circle") {
		t.Errorf("user prompt not forwarded: %q", prov.last.Prompt)
	}
	if !strings.Contains(prov.last.System, "MyScene") {
		t.Errorf("system instruction does not name the scene class: %q", prov.last.System)
	}
	if prov.last.MaxTokens != llm.DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", prov.last.MaxTokens, llm.DefaultMaxTokens)
	}
}

func TestGenerate_Validation(t *testing.T) {
	prov := &scriptedProvider{}
	client := llm.NewClient(prov, llm.ClientConfig{MaxPromptLength: 10})

	for _, prompt := range []string{"", "   \n\t", strings.Repeat("é", 11)} {
		_, err := client.Generate(context.Background(), prompt)
		var vErr *llm.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Generate(%q) error = %v, want ValidationError", prompt, err)
		}
	}
	if prov.calls != 0 {
		t.Errorf("invalid prompts reached the provider %d times", prov.calls)
	}

	// Bound is in characters, not bytes
	if _, err := client.Generate(context.Background(), strings.Repeat("é", 10)); err != nil {
		t.Errorf("Generate() at the limit error = %v", err)
	}
}

func TestGenerate_NoRetryByDefault(t *testing.T) {
	prov := &scriptedProvider{results: []error{llm.ErrTimeout}}
	client := llm.NewClient(prov, llm.ClientConfig{})

	_, err := client.Generate(context.Background(), "x")
	if !errors.Is(err, llm.ErrTimeout) {
		t.Errorf("Generate() error = %v, want ErrTimeout", err)
	}
	if prov.calls != 1 {
		t.Errorf("calls = %d, want 1", prov.calls)
	}
}

func TestGenerate_RetriesRetryable(t *testing.T) {
	prov := &scriptedProvider{results: []error{
		&llm.StatusError{Code: 503, Body: "busy"},
		llm.ErrTransport,
		nil,
	}}
	client := llm.NewClient(prov, llm.ClientConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})

	if _, err := client.Generate(context.Background(), "x"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if prov.calls != 3 {
		t.Errorf("calls = %d, want 3", prov.calls)
	}
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	prov := &scriptedProvider{results: []error{
		&llm.StatusError{Code: 429},
		&llm.StatusError{Code: 429},
		&llm.StatusError{Code: 429},
	}}
	client := llm.NewClient(prov, llm.ClientConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})

	_, err := client.Generate(context.Background(), "x")
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 429 {
		t.Errorf("Generate() error = %v, want StatusError 429", err)
	}
	if prov.calls != 3 {
		t.Errorf("calls = %d, want 3", prov.calls)
	}
}

func TestGenerate_NonRetryableStops(t *testing.T) {
	prov := &scriptedProvider{results: []error{&llm.StatusError{Code: 401}}}
	client := llm.NewClient(prov, llm.ClientConfig{MaxRetries: 5, RetryBackoff: time.Millisecond})

	if _, err := client.Generate(context.Background(), "x"); err == nil {
		t.Fatal("Generate() should fail")
	}
	if prov.calls != 1 {
		t.Errorf("calls = %d, want 1", prov.calls)
	}
}

type blankProvider struct{ calls int }

func (p *blankProvider) Name() string { return "blank" }

func (p *blankProvider) Complete(context.Context, *llm.Request) (string, error) {
	p.calls++
	return " \n\t\n", nil
}

func TestGenerate_BlankReplyIsEmptyResponse(t *testing.T) {
	prov := &blankProvider{}
	client := llm.NewClient(prov, llm.ClientConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})

	reply, err := client.Generate(context.Background(), "draw a circle")
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("Generate() = %q, %v, want ErrEmptyResponse", reply, err)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty", reply)
	}
	if prov.calls != 1 {
		t.Errorf("calls = %d, want 1 (empty replies are not retried)", prov.calls)
	}
}

func TestGenerate_CancelStopsBackoff(t *testing.T) {
	prov := &scriptedProvider{results: []error{llm.ErrTransport, llm.ErrTransport}}
	client := llm.NewClient(prov, llm.ClientConfig{MaxRetries: 1, RetryBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := client.Generate(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{llm.ErrTimeout, true},
		{llm.ErrTransport, true},
		{&llm.StatusError{Code: 500}, true},
		{&llm.StatusError{Code: 429}, true},
		{&llm.StatusError{Code: 400}, false},
		{llm.ErrEmptyResponse, false},
		{llm.ErrReplyTooLarge, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := llm.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "[REDACTED]",
		"sk-abcdefghijkl": "sk-a...ijkl",
	}
	for in, want := range tests {
		if got := llm.MaskToken(in); got != want {
			t.Errorf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
