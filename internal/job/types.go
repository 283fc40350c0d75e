// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Job types and state machine

package job

import (
	"context"
	"time"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusExtracting Status = "extracting"
	StatusRendering  Status = "rendering"
	StatusLocating   Status = "locating"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusGenerating: 1,
	StatusExtracting: 2,
	StatusRendering:  3,
	StatusLocating:   4,
	StatusSucceeded:  5,
}

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Moves are one step forward, or to failed from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromIdx, ok := statusOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := statusOrder[to]
	return ok && toIdx == fromIdx+1
}

// Job is a snapshot of one prompt-to-artifact run
type Job struct {
	ID                string
	Prompt            string
	Status            Status
	GeneratedMarkdown string
	ExtractedCode     string
	Fenced            bool
	SceneName         string
	WorkspacePath     string
	Stdout            string
	Stderr            string
	ExitCode          int
	ArtifactPath      string
	Err               *Error

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// Result is the outcome of a finished job: either *Succeeded or *Failed
type Result interface {
	isResult()
}

// Succeeded carries both the transcript and the artifact, never one without the other
type Succeeded struct {
	JobID        string
	Transcript   string
	ArtifactPath string
}

// Failed carries the structured reason a job stopped
type Failed struct {
	JobID string
	Err   *Error
}

func (*Succeeded) isResult() {}
func (*Failed) isResult()    {}

// Generator produces the raw model reply for a prompt
type Generator interface {
	ValidatePrompt(prompt string) error
	Generate(ctx context.Context, prompt string) (string, error)
}

// manifest is written into kept workspaces for debugging
type manifest struct {
	JobID     string    `yaml:"job_id"`
	Prompt    string    `yaml:"prompt"`
	Status    Status    `yaml:"status"`
	SceneName string    `yaml:"scene_name,omitempty"`
	Fenced    bool      `yaml:"fenced"`
	Backend   string    `yaml:"backend"`
	Quality   string    `yaml:"quality"`
	ExitCode  int       `yaml:"exit_code"`
	Artifact  string    `yaml:"artifact,omitempty"`
	Error     string    `yaml:"error,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}
