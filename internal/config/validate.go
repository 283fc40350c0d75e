// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Configuration validation

package config

import (
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"

	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/llm"
	"github.com/sony-level/scene-runner/internal/security"
)

// ErrInvalidConfig wraps every configuration error reported at startup
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration; the first problem found is returned
func (c Config) Validate() error {
	if err := c.ProviderConfig().Validate(); err != nil {
		return fmt.Errorf("%w: llm: %w", ErrInvalidConfig, err)
	}
	if c.LLM.Timeout <= 0 || c.LLM.Timeout > llm.MaxTimeout {
		return invalid("llm.timeout must be between 0s and %s", llm.MaxTimeout)
	}
	if c.LLM.MaxRetries < 0 {
		return invalid("llm.max_retries must not be negative")
	}
	if c.LLM.MaxPromptLength <= 0 {
		return invalid("llm.max_prompt_length must be positive")
	}
	if c.LLM.MaxReplyBytes <= 0 {
		return invalid("llm.max_reply_bytes must be positive")
	}

	switch c.Renderer.Backend {
	case "local", "docker":
	default:
		return invalid("renderer.backend must be local or docker, got %q", c.Renderer.Backend)
	}
	if exec.NormalizeQuality(c.Renderer.Quality) != c.Renderer.Quality {
		return invalid("renderer.quality must be one of l, m, h, p, k, got %q", c.Renderer.Quality)
	}
	if c.Renderer.Timeout <= 0 || c.Renderer.Timeout > exec.MaxRenderTimeout {
		return invalid("renderer.timeout must be between 0s and %s", exec.MaxRenderTimeout)
	}
	if c.Renderer.OutputLimit <= 0 {
		return invalid("renderer.output_limit must be positive")
	}
	if _, err := exec.BuildArgs(c.Renderer.Command, exec.Paths{}, exec.Options{}); err != nil {
		return fmt.Errorf("%w: renderer.command: %w", ErrInvalidConfig, err)
	}

	if c.Workspace.Root == "" {
		return invalid("workspace.root must not be empty")
	}
	if c.Workspace.Retention < 0 {
		return invalid("workspace.retention must not be negative")
	}
	// Without a relocation target the returned path lives inside the workspace
	if c.Workspace.Retention == 0 && c.Workspace.ArtifactDir == "" && !c.Workspace.Keep {
		return invalid("workspace.retention must be positive unless workspace.artifact_dir or workspace.keep is set")
	}

	if c.Limits.MaxJobs < 1 || c.Limits.MaxGenerate < 1 || c.Limits.MaxRender < 1 {
		return invalid("limits must be at least 1")
	}

	switch c.Extraction.Fallback {
	case security.FallbackAllow, security.FallbackReject:
	default:
		return fmt.Errorf("%w: extraction.fallback: %w", ErrInvalidConfig, security.ErrInvalidFallbackPolicy)
	}
	for _, pattern := range c.Security.BlockedPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return invalid("security.blocked_patterns: %v", err)
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return invalid("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.Server.BodyLimit <= 0 {
		return invalid("server.body_limit must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
