// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Security policy checker for generated scene source

package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sony-level/scene-runner/internal/extract"
)

var (
	fileWriteRegex  = regexp.MustCompile(`\bopen\s*\([^)]*,\s*['"][^'"]*[wax+]`)
	networkRegex    = regexp.MustCompile(`https?://`)
	sysExitRegex    = regexp.MustCompile(`\bsys\.exit\s*\(`)
	manimImport     = regexp.MustCompile(`(?m)^\s*(from\s+manim(\.\w+)*\s+import|import\s+manim)\b`)
	systemDirsRegex = regexp.MustCompile(`['"](/etc|/usr|/var|/bin|/sbin|/root|/boot|~)/`)
)

// PolicyChecker validates generated source against security policy
type PolicyChecker struct {
	config  *PolicyConfig
	blocked []*regexp.Regexp
}

// NewPolicyChecker creates a new policy checker
func NewPolicyChecker(config *PolicyConfig) (*PolicyChecker, error) {
	if config == nil {
		config = DefaultPolicy()
	}
	switch config.FallbackPolicy {
	case "":
		config.FallbackPolicy = FallbackAllow
	case FallbackAllow, FallbackReject:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFallbackPolicy, config.FallbackPolicy)
	}
	if config.MaxSourceBytes <= 0 {
		config.MaxSourceBytes = DefaultMaxSourceBytes
	}

	c := &PolicyChecker{config: config}
	for _, pattern := range config.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", pattern, err)
		}
		c.blocked = append(c.blocked, re)
	}
	return c, nil
}

// AllowsFallback reports whether unfenced replies may be rendered
func (c *PolicyChecker) AllowsFallback() bool {
	return c.config.FallbackPolicy != FallbackReject
}

// ValidateSource checks an extraction before anything is executed
func (c *PolicyChecker) ValidateSource(ext extract.Extraction) *ValidationResult {
	result := NewValidationResult()

	if !ext.Fenced {
		if !c.AllowsFallback() {
			result.FallbackRejected = true
			result.AddError("reply contains no fenced code block")
			return result
		}
		result.AddWarning("reply contains no fenced code block, using the whole reply as source")
	}

	if strings.TrimSpace(ext.Code) == "" {
		result.AddError("source is empty")
		return result
	}
	if len(ext.Code) > c.config.MaxSourceBytes {
		result.AddError(fmt.Sprintf("source is %d bytes, limit is %d", len(ext.Code), c.config.MaxSourceBytes))
		return result
	}

	if ext.Language != "" && !isPython(ext.Language) {
		result.AddWarning(fmt.Sprintf("code block is tagged %q, expected python", ext.Language))
	}
	if !manimImport.MatchString(ext.Code) {
		result.AddWarning("source does not import manim")
	}

	for i, line := range strings.Split(ext.Code, "\n") {
		analysis := c.AnalyzeLine(i+1, line)
		if analysis == nil {
			continue
		}
		result.RiskSummary[analysis.Risk]++

		if analysis.IsBlocked {
			result.AddError(fmt.Sprintf("line %d blocked: %s", analysis.Line, analysis.BlockReason))
		}
		for _, w := range analysis.Warnings {
			result.AddWarning(fmt.Sprintf("line %d: %s", analysis.Line, w))
		}
	}

	return result
}

// AnalyzeLine performs security analysis on a single source line.
// Blank lines and comments return nil.
func (c *PolicyChecker) AnalyzeLine(n int, line string) *LineAnalysis {
	code := stripComment(line)
	if strings.TrimSpace(code) == "" {
		return nil
	}

	analysis := &LineAnalysis{Line: n, Text: line, Risk: RiskLow}

	for _, re := range c.blocked {
		if re.MatchString(code) {
			analysis.IsBlocked = true
			analysis.BlockReason = fmt.Sprintf("matches blocked pattern: %s", re.String())
			analysis.Risk = RiskCritical
			return analysis
		}
	}

	if systemDirsRegex.MatchString(code) {
		analysis.Risk = RiskHigh
		analysis.Warnings = append(analysis.Warnings, "references system directories")
	}
	if networkRegex.MatchString(code) {
		raise(analysis, RiskMedium)
		analysis.Warnings = append(analysis.Warnings, "contains a URL")
	}
	if fileWriteRegex.MatchString(code) {
		raise(analysis, RiskMedium)
		analysis.Warnings = append(analysis.Warnings, "writes a file")
	}
	if sysExitRegex.MatchString(code) {
		raise(analysis, RiskMedium)
		analysis.Warnings = append(analysis.Warnings, "exits the interpreter")
	}

	return analysis
}

var riskOrder = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

func raise(a *LineAnalysis, level RiskLevel) {
	if riskOrder[level] > riskOrder[a.Risk] {
		a.Risk = level
	}
}

// stripComment drops a trailing # comment outside string literals
func stripComment(line string) string {
	var quote rune
	escaped := false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

func isPython(lang string) bool {
	switch lang {
	case "python", "python3", "py", "py3":
		return true
	}
	return false
}
