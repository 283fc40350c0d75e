// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Common utilities shared across providers

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony-level/scene-runner/internal/llm"
)

// TruncateForError truncates a string for error messages
func TruncateForError(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func httpClient(config *llm.ProviderConfig) *http.Client {
	if config.HTTPClient != nil {
		return config.HTTPClient
	}
	return &http.Client{}
}

// postJSON makes one bounded POST attempt and returns the raw response body.
// errorMessage extracts a readable message from a non-success body.
func postJSON(ctx context.Context, client *http.Client, config *llm.ProviderConfig, url string, headers map[string]string, payload any, errorMessage func([]byte) string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	limit := config.MaxReplyBytes
	if limit <= 0 {
		limit = llm.DefaultMaxReplyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, classifyTransport(ctx, attemptCtx, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", llm.ErrReplyTooLarge, limit)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if errorMessage != nil {
			msg = errorMessage(body)
		}
		if msg == "" {
			msg = TruncateForError(string(body), 200)
		}
		return nil, &llm.StatusError{Code: resp.StatusCode, Body: msg}
	}

	return body, nil
}

// classifyTransport separates caller cancellation, attempt timeout and network failure
func classifyTransport(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return llm.ErrTimeout
	}
	return fmt.Errorf("%w: %v", llm.ErrTransport, err)
}

// decodeJSON unmarshals a response body
func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}
	return nil
}

// apiErrorMessage reads the {"error":{"message":...}} shape shared by hosted APIs
func apiErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return ""
}
