// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Local renderer invocation in an isolated process group

package exec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/workspace"
)

// waitDelay bounds how long Wait waits for output pipes after the kill
const waitDelay = 2 * time.Second

// LocalConfig configures the local invoker
type LocalConfig struct {
	Command     string // Command template, DefaultCommand when empty
	OutputLimit int    // Bytes captured per stream
	Env         []string
	Log         *zap.Logger
}

// LocalInvoker runs the renderer as a child process of this one
type LocalInvoker struct {
	config LocalConfig
	log    *zap.Logger
}

// NewLocalInvoker creates a local invoker
func NewLocalInvoker(config LocalConfig) *LocalInvoker {
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	return &LocalInvoker{
		config: config,
		log:    config.Log.Named("renderer"),
	}
}

// Name returns the backend name
func (l *LocalInvoker) Name() string {
	return "local"
}

// Run renders the workspace source. The child is always reaped before Run returns.
func (l *LocalInvoker) Run(ctx context.Context, ws *workspace.Workspace, opts Options) (*RenderResult, error) {
	result := &RenderResult{ExitCode: -1}

	args, err := BuildArgs(l.config.Command, Paths{
		Source:   ws.SourcePath(),
		MediaDir: ws.MediaDir(),
		WorkDir:  ws.Path,
	}, opts)
	if err != nil {
		return result, err
	}

	timeout := GetTimeout(opts.Timeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := l.log.With(zap.String("job_id", ws.JobID))

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = ws.Path
	if len(l.config.Env) > 0 {
		cmd.Env = append(cmd.Environ(), l.config.Env...)
	}
	setPlatformProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	stdout := newCapture(l.config.OutputLimit, log, "stdout")
	stderr := newCapture(l.config.OutputLimit, log, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug("starting renderer", zap.Strings("argv", args), zap.Duration("timeout", timeout))

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return result, fmt.Errorf("failed to start renderer: %w", err)
	}
	result.PID = cmd.Process.Pid

	waitErr := cmd.Wait()

	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	timedOut, err := interrupted(ctx, runCtx, waitErr == nil)
	if err != nil {
		return result, err
	}
	if timedOut {
		result.TimedOut = true
		log.Warn("renderer timed out", zap.Duration("timeout", timeout), zap.Int("pid", result.PID))
		return result, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("renderer wait failed: %w", waitErr)
	}

	result.ExitCode = 0
	return result, nil
}

// interrupted classifies a finished run against its contexts. A process that
// exited cleanly counts as finished even if the deadline passed meanwhile.
// Parent cancellation takes precedence over the run deadline.
func interrupted(ctx, runCtx context.Context, exited bool) (timedOut bool, err error) {
	if exited {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("render cancelled: %w", ctx.Err())
	}
	return errors.Is(runCtx.Err(), context.DeadlineExceeded), nil
}
