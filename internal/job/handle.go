// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Handle to a submitted job

package job

import "context"

// Handle refers to a submitted job
type Handle struct {
	e *entry
}

// ID returns the job id
func (h *Handle) ID() string {
	return h.e.job.ID
}

// Done is closed once the job reaches a terminal status
func (h *Handle) Done() <-chan struct{} {
	return h.e.done
}

// Cancel requests cancellation; a finished job is unaffected
func (h *Handle) Cancel() {
	h.e.cancel()
}

// Job returns a snapshot of the job
func (h *Handle) Job() Job {
	return h.e.snapshot()
}

// Result returns the outcome, or nil while the job is still running
func (h *Handle) Result() Result {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.e.result
}

// Wait blocks until the job finishes or ctx ends.
// Ending ctx stops the wait only; use Cancel to stop the job.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.e.done:
		return h.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
