// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Per-job pipeline: generate, extract, render, locate

package job

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/artifact"
	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/extract"
	"github.com/sony-level/scene-runner/internal/workspace"
)

// execute runs an admitted job to a terminal status
func (o *Orchestrator) execute(e *entry) {
	log := o.log.With(zap.String("job_id", e.job.ID))

	reply, failure := o.generateReply(e)
	if failure != nil {
		o.finish(e, nil, failure)
		return
	}

	ext, scene, failure := o.extractSource(e, reply, log)
	if failure != nil {
		o.finish(e, nil, failure)
		return
	}

	ok, failure := o.renderAndLocate(e, ext, scene, log)
	o.finish(e, ok, failure)
}

func (o *Orchestrator) generateReply(e *entry) (string, *Error) {
	ctx := e.ctx
	if err := o.generate.Acquire(ctx, 1); err != nil {
		return "", interrupted(ctx, StatusGenerating)
	}
	reply, err := o.opts.Generator.Generate(ctx, e.job.Prompt)
	o.generate.Release(1)
	if err != nil {
		return "", classifyGeneration(ctx, err)
	}

	e.update(func(j *Job) { j.GeneratedMarkdown = reply })
	return reply, nil
}

func (o *Orchestrator) extractSource(e *entry, reply string, log *zap.Logger) (extract.Extraction, string, *Error) {
	if !o.advance(e, StatusExtracting) {
		return extract.Extraction{}, "", interrupted(e.ctx, StatusExtracting)
	}

	ext := extract.Extract(reply)
	scene := extract.SceneName(ext.Code, o.opts.DefaultScene)
	e.update(func(j *Job) {
		j.ExtractedCode = ext.Code
		j.Fenced = ext.Fenced
		j.SceneName = scene
	})

	if !ext.Fenced {
		log.Warn("reply has no fenced code block, using the whole reply", zap.Int("reply_bytes", len(reply)))
	}

	result := o.opts.Policy.ValidateSource(ext)
	for _, w := range result.Warnings {
		log.Debug("source warning", zap.String("warning", w))
	}
	if result.FallbackRejected {
		return ext, scene, &Error{
			Kind:    KindExtractionFallback,
			Stage:   StatusExtracting,
			Message: "reply contains no fenced code block",
		}
	}
	if !result.Valid {
		return ext, scene, &Error{
			Kind:    KindPolicyViolation,
			Stage:   StatusExtracting,
			Message: "generated source rejected",
			Details: strings.Join(result.Errors, "\n"),
		}
	}
	return ext, scene, nil
}

// renderAndLocate owns the workspace: it is released exactly once on every path,
// or handed to the entry for timed release after a successful run.
func (o *Orchestrator) renderAndLocate(e *entry, ext extract.Extraction, scene string, log *zap.Logger) (*Succeeded, *Error) {
	ctx := e.ctx
	if !o.advance(e, StatusRendering) {
		return nil, interrupted(ctx, StatusRendering)
	}

	if err := o.render.Acquire(ctx, 1); err != nil {
		return nil, interrupted(ctx, StatusRendering)
	}
	rendering := true
	defer func() {
		if rendering {
			o.render.Release(1)
		}
	}()

	ws, err := o.opts.Workspaces.Acquire(e.job.ID)
	if err != nil {
		return nil, newError(KindWorkspace, StatusRendering, "failed to acquire workspace", err)
	}

	var (
		retain  bool
		result  *exec.RenderResult
		located string
		failure *Error
	)
	defer func() {
		o.writeManifest(e, ws, result, located, failure, log)
		if retain {
			return
		}
		if err := ws.Release(); err != nil {
			log.Warn("failed to release workspace", zap.Error(err))
		}
	}()

	e.update(func(j *Job) { j.WorkspacePath = ws.Path })

	if _, err := ws.WriteSource(ext.Code); err != nil {
		failure = newError(KindWorkspace, StatusRendering, "failed to write source", err)
		return nil, failure
	}

	result, err = o.opts.Invoker.Run(ctx, ws, exec.Options{
		SceneName: scene,
		Quality:   o.opts.Quality,
		Timeout:   o.opts.RenderTimeout,
	})
	o.render.Release(1)
	rendering = false

	if result != nil {
		e.update(func(j *Job) {
			j.Stdout = result.Stdout
			j.Stderr = result.Stderr
			j.ExitCode = result.ExitCode
		})
	}

	if failure = classifyRender(ctx, result, err); failure != nil {
		return nil, failure
	}

	log.Debug("render finished",
		zap.String("backend", o.opts.Invoker.Name()),
		zap.Int("pid", result.PID),
		zap.Duration("duration", result.Duration))

	if !o.advance(e, StatusLocating) {
		failure = interrupted(ctx, StatusLocating)
		return nil, failure
	}

	located, err = o.opts.Locator.Locate(ws, scene)
	if err != nil {
		failure = &Error{
			Kind:    KindArtifactMissing,
			Stage:   StatusLocating,
			Message: "renderer produced no artifact",
			Details: result.Stderr,
			Err:     err,
		}
		return nil, failure
	}

	if o.opts.ArtifactDir != "" {
		moved, err := artifact.Relocate(ws.Fs(), located, o.opts.ArtifactDir, e.job.ID)
		if err != nil {
			failure = newError(KindWorkspace, StatusLocating, "failed to relocate artifact", err)
			return nil, failure
		}
		located = moved
	} else {
		retain = true
		e.mu.Lock()
		e.ws = ws
		e.mu.Unlock()
		ws.ReleaseAfter(o.opts.Retention)
	}

	return &Succeeded{
		JobID:        e.job.ID,
		Transcript:   result.Stdout,
		ArtifactPath: located,
	}, nil
}

// classifyRender maps an invoker outcome onto a job error, nil on success
func classifyRender(ctx context.Context, result *exec.RenderResult, err error) *Error {
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx, StatusRendering)
		}
		failure := newError(KindRenderFailure, StatusRendering, "renderer could not be run", err)
		if result != nil {
			failure.Details = result.Stderr
		}
		return failure
	}
	if result == nil {
		return newError(KindRenderFailure, StatusRendering, "renderer returned no result", nil)
	}

	switch result.Outcome() {
	case exec.OutcomeTimeout:
		return &Error{
			Kind:    KindRenderTimeout,
			Stage:   StatusRendering,
			Message: "renderer exceeded its deadline",
			Details: result.Stderr,
		}
	case exec.OutcomeFailed:
		return &Error{
			Kind:    KindRenderFailure,
			Stage:   StatusRendering,
			Message: "renderer exited with code " + strconv.Itoa(result.ExitCode),
			Details: result.Stderr,
			Err:     errRenderExit,
		}
	}
	return nil
}

var errRenderExit = errors.New("non-zero renderer exit")

func (o *Orchestrator) writeManifest(e *entry, ws *workspace.Workspace, result *exec.RenderResult, located string, failure *Error, log *zap.Logger) {
	if !ws.ShouldKeep() {
		return
	}
	snap := e.snapshot()
	m := manifest{
		JobID:     snap.ID,
		Prompt:    snap.Prompt,
		Status:    StatusSucceeded,
		SceneName: snap.SceneName,
		Fenced:    snap.Fenced,
		Backend:   o.opts.Invoker.Name(),
		Quality:   o.opts.Quality,
		Artifact:  located,
		CreatedAt: snap.CreatedAt,
	}
	if result != nil {
		m.ExitCode = result.ExitCode
	}
	if failure != nil {
		m.Status = StatusFailed
		m.Error = failure.Error()
	}
	if err := ws.WriteManifest(m); err != nil {
		log.Warn("failed to write manifest", zap.Error(err))
	}
}
