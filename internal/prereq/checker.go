// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Prerequisite checker for tool existence and versions

package prereq

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds each version probe
const versionTimeout = 5 * time.Second

// Checker verifies tool existence
type Checker struct {
	tools    map[string]*Tool
	lookPath func(string) (string, error)
}

// NewChecker creates a new prerequisite checker
func NewChecker() *Checker {
	return NewCheckerWithTools(DefaultTools())
}

// NewCheckerWithTools creates a checker with custom tools
func NewCheckerWithTools(tools map[string]*Tool) *Checker {
	return &Checker{
		tools:    tools,
		lookPath: exec.LookPath,
	}
}

// CheckBackend verifies the toolchain a renderer backend needs
func (c *Checker) CheckBackend(ctx context.Context, backend string) *CheckSummary {
	return c.CheckMultiple(ctx, RequiredTools(backend))
}

// CheckTool checks if a specific tool exists
func (c *Checker) CheckTool(ctx context.Context, name string) CheckResult {
	result := CheckResult{Name: name}

	tool, ok := c.tools[strings.ToLower(name)]
	if !ok {
		// Unknown tool - try direct command check
		if path, err := c.lookPath(name); err == nil {
			result.Found = true
			result.Path = path
		}
		return result
	}
	result.Optional = tool.Optional

	if path, err := c.lookPath(tool.Command); err == nil {
		result.Found = true
		result.Path = path
		result.Version = c.getVersion(ctx, tool.VersionCmd)
		return result
	}

	for _, alt := range tool.Alternatives {
		if path, err := c.lookPath(alt); err == nil {
			result.Found = true
			result.Path = path
			return result
		}
	}

	return result
}

// GetTool returns a tool definition by name
func (c *Checker) GetTool(name string) *Tool {
	return c.tools[strings.ToLower(name)]
}

// GetInstallGuide returns installation instructions for a tool
func (c *Checker) GetInstallGuide(name string) string {
	tool := c.GetTool(name)
	if tool == nil {
		return "No installation guide available for " + name
	}
	return tool.InstallGuide
}

// getVersion executes a version command and returns the first line of output
func (c *Checker) getVersion(ctx context.Context, versionCmd string) string {
	parts := strings.Fields(versionCmd)
	if len(parts) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, parts[0], parts[1:]...).Output()
	if err != nil {
		return ""
	}

	output := strings.TrimSpace(string(out))
	if idx := strings.Index(output, "\n"); idx > 0 {
		output = output[:idx]
	}
	return output
}

// CheckMultiple checks multiple tools and returns a summary
func (c *Checker) CheckMultiple(ctx context.Context, names []string) *CheckSummary {
	summary := NewCheckSummary()
	for _, name := range names {
		summary.AddResult(c.CheckTool(ctx, name))
	}
	return summary
}

// FormatMissing returns a formatted string of missing tools with install guides
func (c *Checker) FormatMissing(summary *CheckSummary) string {
	if len(summary.MissingTools) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Missing prerequisites:\n\n")

	for _, name := range summary.MissingTools {
		header := name
		if tool := c.GetTool(name); tool != nil && tool.Optional {
			header += " (optional)"
		}
		sb.WriteString("─────────────────────────────────\n")
		sb.WriteString(header + "\n")
		sb.WriteString("─────────────────────────────────\n")
		sb.WriteString(c.GetInstallGuide(name))
		sb.WriteString("\n\n")
	}

	return sb.String()
}
