// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Job orchestration: admission, phase limits and the job index

package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sony-level/scene-runner/internal/artifact"
	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/security"
	"github.com/sony-level/scene-runner/internal/workspace"
)

// Default limits
const (
	DefaultMaxJobs     = 8
	DefaultMaxGenerate = 4
	DefaultMaxRender   = 2
)

// Options configures an orchestrator
type Options struct {
	Generator  Generator
	Policy     *security.PolicyChecker
	Workspaces *workspace.Manager
	Invoker    exec.Invoker
	Locator    *artifact.Locator

	Quality       string
	RenderTimeout time.Duration
	DefaultScene  string

	MaxJobs     int // Jobs admitted past pending at once
	MaxGenerate int // Concurrent generation calls
	MaxRender   int // Concurrent renderer invocations

	ArtifactDir string        // Relocation target, empty keeps artifacts in the workspace
	Retention   time.Duration // How long finished jobs and their workspaces stay available

	OnTransition func(Job) // Called after every status change; must not block
	NewID        func() string
	Log          *zap.Logger
}

// Orchestrator runs jobs through generate, extract, render and locate
type Orchestrator struct {
	opts Options
	log  *zap.Logger

	jobs     *semaphore.Weighted
	generate *semaphore.Weighted
	render   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	index  map[string]*entry
	queue  []*entry
	closed bool

	wake       chan struct{}
	dispatched chan struct{}
	wg         sync.WaitGroup
}

// entry is the orchestrator-owned state of one job
type entry struct {
	mu     sync.Mutex
	job    Job
	result Result
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	detach func() bool

	ws     *workspace.Workspace // Retained after success
	expiry *time.Timer
}

// New creates an orchestrator and starts its dispatcher
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	case opts.Policy == nil:
		return nil, fmt.Errorf("%w: policy", ErrMissingDependency)
	case opts.Workspaces == nil:
		return nil, fmt.Errorf("%w: workspaces", ErrMissingDependency)
	case opts.Invoker == nil:
		return nil, fmt.Errorf("%w: invoker", ErrMissingDependency)
	case opts.Locator == nil:
		return nil, fmt.Errorf("%w: locator", ErrMissingDependency)
	}

	if opts.MaxJobs <= 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.MaxGenerate <= 0 {
		opts.MaxGenerate = DefaultMaxGenerate
	}
	if opts.MaxRender <= 0 {
		opts.MaxRender = DefaultMaxRender
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	opts.Quality = exec.NormalizeQuality(opts.Quality)

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		opts:       opts,
		log:        opts.Log.Named("job"),
		jobs:       semaphore.NewWeighted(int64(opts.MaxJobs)),
		generate:   semaphore.NewWeighted(int64(opts.MaxGenerate)),
		render:     semaphore.NewWeighted(int64(opts.MaxRender)),
		ctx:        ctx,
		cancel:     cancel,
		index:      make(map[string]*entry),
		wake:       make(chan struct{}, 1),
		dispatched: make(chan struct{}),
	}
	go o.dispatch()
	return o, nil
}

// Submit validates the prompt, queues a job and returns immediately.
// Validation failures are returned synchronously as *Error.
// Cancelling ctx cancels the job.
func (o *Orchestrator) Submit(ctx context.Context, prompt string) (*Handle, error) {
	if err := o.opts.Generator.ValidatePrompt(prompt); err != nil {
		return nil, newError(KindValidation, StatusPending, "invalid prompt", err)
	}

	now := time.Now()
	jctx, cancel := context.WithCancel(ctx)
	e := &entry{
		job: Job{
			Prompt:    prompt,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done:   make(chan struct{}),
		ctx:    jctx,
		cancel: cancel,
		detach: context.AfterFunc(o.ctx, cancel),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		e.detach()
		cancel()
		return nil, ErrClosed
	}
	id := o.opts.NewID()
	if _, dup := o.index[id]; dup {
		o.mu.Unlock()
		e.detach()
		cancel()
		return nil, newError(KindWorkspace, StatusPending, "duplicate job id", fmt.Errorf("%w: %s", workspace.ErrInUse, id))
	}
	e.job.ID = id
	o.index[id] = e
	o.wg.Add(1)
	o.mu.Unlock()

	o.log.Info("job submitted", zap.String("job_id", id), zap.Int("prompt_runes", len([]rune(prompt))))
	o.notify(e.snapshot())

	// Queued only after observers saw pending
	o.mu.Lock()
	o.queue = append(o.queue, e)
	o.mu.Unlock()
	context.AfterFunc(jctx, func() { o.cancelPending(e) })

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return &Handle{e: e}, nil
}

// Run submits a job and waits for its result
func (o *Orchestrator) Run(ctx context.Context, prompt string) (Result, error) {
	h, err := o.Submit(ctx, prompt)
	if err != nil {
		return nil, err
	}
	<-h.Done()
	return h.Result(), nil
}

// Get returns a snapshot of a job still held in the index
func (o *Orchestrator) Get(id string) (Job, bool) {
	o.mu.Lock()
	e, ok := o.index[id]
	o.mu.Unlock()
	if !ok {
		return Job{}, false
	}
	return e.snapshot(), true
}

// Len returns the number of indexed jobs
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.index)
}

// Close cancels every job, waits for them to finish and releases retained workspaces
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		<-o.dispatched
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("failed to drain jobs: %w", ctx.Err())
	}

	o.mu.Lock()
	entries := make([]*entry, 0, len(o.index))
	for id, e := range o.index {
		entries = append(entries, e)
		delete(o.index, id)
	}
	o.mu.Unlock()

	for _, e := range entries {
		o.expire(e)
	}
	return nil
}

// dispatch admits queued jobs in arrival order
func (o *Orchestrator) dispatch() {
	defer close(o.dispatched)
	for {
		e := o.next()
		if e == nil {
			return
		}
		// A cancelled head is finished by cancelPending
		if err := o.jobs.Acquire(e.ctx, 1); err != nil {
			continue
		}
		if !o.advance(e, StatusGenerating) {
			o.jobs.Release(1)
			continue
		}
		go func() {
			defer o.jobs.Release(1)
			o.execute(e)
		}()
	}
}

func (o *Orchestrator) next() *entry {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			e := o.queue[0]
			o.queue[0] = nil
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return e
		}
		o.mu.Unlock()

		select {
		case <-o.wake:
		case <-o.ctx.Done():
			return nil
		}
	}
}

// cancelPending fails a job whose context ended before admission
func (o *Orchestrator) cancelPending(e *entry) {
	o.finishFrom(e, StatusPending, nil, interrupted(e.ctx, StatusPending))
}

// advance moves e to the next status and notifies observers
func (o *Orchestrator) advance(e *entry, to Status) bool {
	e.mu.Lock()
	if !CanTransition(e.job.Status, to) {
		from := e.job.Status
		e.mu.Unlock()
		if !from.Terminal() {
			o.log.Error("illegal job transition",
				zap.String("job_id", e.job.ID), zap.String("from", string(from)), zap.String("to", string(to)))
		}
		return false
	}
	e.job.Status = to
	e.job.UpdatedAt = time.Now()
	snap := e.job
	e.mu.Unlock()

	o.log.Debug("job transition", zap.String("job_id", snap.ID), zap.String("status", string(to)))
	o.notify(snap)
	return true
}

// finish records the terminal state exactly once
func (o *Orchestrator) finish(e *entry, ok *Succeeded, failure *Error) {
	o.finishFrom(e, "", ok, failure)
}

// finishFrom finishes e only while it is in status from; an empty from matches any live status
func (o *Orchestrator) finishFrom(e *entry, from Status, ok *Succeeded, failure *Error) {
	e.mu.Lock()
	if e.job.Status.Terminal() || (from != "" && e.job.Status != from) {
		e.mu.Unlock()
		return
	}
	now := time.Now()
	e.job.UpdatedAt = now
	e.job.FinishedAt = now
	if failure != nil {
		e.job.Status = StatusFailed
		e.job.Err = failure
		e.result = &Failed{JobID: e.job.ID, Err: failure}
	} else {
		e.job.Status = StatusSucceeded
		e.job.ArtifactPath = ok.ArtifactPath
		e.result = ok
	}
	snap := e.job
	close(e.done)
	e.mu.Unlock()

	e.detach()
	e.cancel()

	fields := []zap.Field{
		zap.String("job_id", snap.ID),
		zap.String("status", string(snap.Status)),
		zap.Duration("duration", snap.FinishedAt.Sub(snap.CreatedAt)),
	}
	if failure != nil {
		o.log.Warn("job failed", append(fields, zap.String("kind", string(failure.Kind)), zap.Error(failure))...)
	} else {
		o.log.Info("job succeeded", append(fields, zap.String("artifact", snap.ArtifactPath))...)
	}
	o.notify(snap)

	o.mu.Lock()
	if !o.closed {
		e.mu.Lock()
		e.expiry = time.AfterFunc(o.opts.Retention, func() { o.forget(snap.ID) })
		e.mu.Unlock()
	}
	o.mu.Unlock()

	o.wg.Done()
}

// forget drops a finished job from the index once its retention window elapsed
func (o *Orchestrator) forget(id string) {
	o.mu.Lock()
	e, ok := o.index[id]
	if ok {
		delete(o.index, id)
	}
	o.mu.Unlock()
	if ok {
		o.expire(e)
	}
}

func (o *Orchestrator) expire(e *entry) {
	e.mu.Lock()
	if e.expiry != nil {
		e.expiry.Stop()
	}
	ws := e.ws
	e.ws = nil
	e.mu.Unlock()

	if ws != nil {
		if err := ws.Release(); err != nil {
			o.log.Warn("failed to release retained workspace", zap.String("job_id", ws.JobID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) notify(snap Job) {
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(snap)
	}
}

func (e *entry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

func (e *entry) update(fn func(*Job)) {
	e.mu.Lock()
	fn(&e.job)
	e.job.UpdatedAt = time.Now()
	e.mu.Unlock()
}
