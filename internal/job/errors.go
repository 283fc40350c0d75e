// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Structured job errors

package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony-level/scene-runner/internal/llm"
)

// Kind classifies why a job failed
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUpstreamGeneration Kind = "upstream_generation"
	KindTimeout            Kind = "timeout"
	KindExtractionFallback Kind = "extraction_fallback"
	KindPolicyViolation    Kind = "policy_violation"
	KindWorkspace          Kind = "workspace"
	KindRenderTimeout      Kind = "render_timeout"
	KindRenderFailure      Kind = "render_failure"
	KindArtifactMissing    Kind = "artifact_missing"
	KindCancelled          Kind = "cancelled"
)

var (
	ErrClosed            = errors.New("orchestrator is closed")
	ErrMissingDependency = errors.New("orchestrator dependency missing")
)

// Error is the structured failure of a job
type Error struct {
	Kind    Kind
	Stage   Status // Status the job was in when it failed
	Message string
	Details string // Renderer stderr or policy findings, when available
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s during %s: %s", e.Kind, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether either deadline was exceeded
func (e *Error) Timeout() bool {
	return e.Kind == KindTimeout || e.Kind == KindRenderTimeout
}

// Retryable reports whether resubmitting the same prompt may succeed
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamGeneration && llm.IsRetryable(e.Err)
}

func newError(kind Kind, stage Status, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// interrupted classifies an error caused by the job context ending
func interrupted(ctx context.Context, stage Status) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, stage, "deadline exceeded", ctx.Err())
	}
	return newError(KindCancelled, stage, "job cancelled", ctx.Err())
}

// classifyGeneration maps a generation client error onto a kind
func classifyGeneration(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return interrupted(ctx, StatusGenerating)
	}

	var validation *llm.ValidationError
	switch {
	case errors.As(err, &validation):
		return newError(KindValidation, StatusGenerating, validation.Message, err)
	case errors.Is(err, llm.ErrTimeout):
		return newError(KindTimeout, StatusGenerating, "generation timed out", err)
	default:
		return newError(KindUpstreamGeneration, StatusGenerating, "generation failed", err)
	}
}
