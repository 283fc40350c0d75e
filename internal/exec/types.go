// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Renderer invocation types and interfaces

package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/sony-level/scene-runner/internal/workspace"
)

// DefaultRenderTimeout is the default wall-clock limit for one render
const DefaultRenderTimeout = 5 * time.Minute

// MaxRenderTimeout is the maximum allowed render timeout
const MaxRenderTimeout = 30 * time.Minute

// DefaultOutputLimit bounds the captured stdout and stderr, each
const DefaultOutputLimit = 1 << 20

// DefaultCommand renders at the requested quality with the cache disabled
const DefaultCommand = "manim render -q{quality} --disable_caching --media_dir {media_dir} {source} {scene}"

// Quality profiles understood by the renderer
const (
	QualityLow    = "l"
	QualityMedium = "m"
	QualityHigh   = "h"
	Quality2K     = "p"
	Quality4K     = "k"
)

// ErrEmptyCommand is returned when the command template expands to nothing
var ErrEmptyCommand = errors.New("renderer command is empty")

// Invoker runs the rendering toolchain against a workspace
type Invoker interface {
	// Name identifies the sandbox backend
	Name() string
	// Run renders ws and always returns a result, even alongside an error.
	// The error is non-nil only when the renderer could not be run or ctx was cancelled.
	Run(ctx context.Context, ws *workspace.Workspace, opts Options) (*RenderResult, error)
}

// Options configures a single render
type Options struct {
	SceneName string
	Quality   string
	Timeout   time.Duration
}

// Outcome classifies a finished render
type Outcome int

const (
	// OutcomeOK means exit code zero within the deadline
	OutcomeOK Outcome = iota
	// OutcomeTimeout means the deadline elapsed and the process was killed
	OutcomeTimeout
	// OutcomeFailed means a non-zero exit code
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RenderResult contains the raw result of one render
type RenderResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	PID      int
	Duration time.Duration
}

// Outcome classifies the result
func (r *RenderResult) Outcome() Outcome {
	switch {
	case r.TimedOut:
		return OutcomeTimeout
	case r.ExitCode != 0:
		return OutcomeFailed
	default:
		return OutcomeOK
	}
}

// GetTimeout clamps a requested timeout to the allowed range
func GetTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return DefaultRenderTimeout
	}
	if requested > MaxRenderTimeout {
		return MaxRenderTimeout
	}
	return requested
}

// NormalizeQuality maps empty or unknown values to the fast profile
func NormalizeQuality(q string) string {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, Quality2K, Quality4K:
		return q
	default:
		return QualityLow
	}
}

// Paths are the values substituted into a command template
type Paths struct {
	Source   string
	MediaDir string
	WorkDir  string
}

// BuildArgs expands a command template into argv.
// The template is split with shell quoting rules first, so substituted paths
// containing spaces stay single arguments.
func BuildArgs(template string, paths Paths, opts Options) ([]string, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand
	}

	words, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("invalid renderer command %q: %w", template, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	replacer := strings.NewReplacer(
		"{source}", paths.Source,
		"{media_dir}", paths.MediaDir,
		"{workdir}", paths.WorkDir,
		"{scene}", opts.SceneName,
		"{quality}", NormalizeQuality(opts.Quality),
	)

	args := make([]string, 0, len(words))
	for _, w := range words {
		expanded := replacer.Replace(w)
		// A bare placeholder with no value (e.g. no scene) is dropped
		if expanded == "" && w != "" {
			continue
		}
		args = append(args, expanded)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}
