// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Security types and configuration

package security

import "errors"

// RiskLevel represents the risk of a source line
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Fallback policies for replies without a fenced code block
const (
	FallbackAllow  = "allow"
	FallbackReject = "reject"
)

// DefaultMaxSourceBytes bounds the generated source
const DefaultMaxSourceBytes = 256 << 10

// ErrInvalidFallbackPolicy is returned for an unknown fallback policy
var ErrInvalidFallbackPolicy = errors.New("fallback policy must be allow or reject")

// PolicyConfig holds security policy settings
type PolicyConfig struct {
	FallbackPolicy  string   // allow or reject unfenced replies
	BlockedPatterns []string // Regular expressions that block a source outright
	MaxSourceBytes  int      // Upper bound on source size
}

// DefaultBlockedPatterns are source constructs with no place in an animation scene
var DefaultBlockedPatterns = []string{
	`\bimport\s+subprocess\b`,
	`\bfrom\s+subprocess\s+import\b`,
	`\bos\.(system|popen|exec\w*|spawn\w*|fork|kill|remove|unlink|rmdir|removedirs)\s*\(`,
	`\bshutil\.(rmtree|move|chown)\s*\(`,
	`\bimport\s+(socket|ctypes|requests)\b`,
	`\bfrom\s+(socket|ctypes|requests|urllib\S*|http\.client)\s+import\b`,
	`\bimport\s+urllib`,
	`\b__import__\s*\(`,
	`(^|[^.\w])(eval|exec)\s*\(`,
}

// DefaultPolicy returns the default security policy
func DefaultPolicy() *PolicyConfig {
	return &PolicyConfig{
		FallbackPolicy:  FallbackAllow,
		BlockedPatterns: DefaultBlockedPatterns,
		MaxSourceBytes:  DefaultMaxSourceBytes,
	}
}

// ValidationResult contains source validation outcome
type ValidationResult struct {
	Valid            bool
	FallbackRejected bool // Unfenced reply under the reject policy
	Errors           []string
	Warnings         []string
	RiskSummary      map[RiskLevel]int
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:       true,
		Errors:      []string{},
		Warnings:    []string{},
		RiskSummary: make(map[RiskLevel]int),
	}
}

// AddError adds an error and marks result as invalid
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning adds a warning
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// LineAnalysis contains risk analysis for a single source line
type LineAnalysis struct {
	Line        int
	Text        string
	Risk        RiskLevel
	IsBlocked   bool
	BlockReason string
	Warnings    []string
}
