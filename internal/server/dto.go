// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Request and response bodies

package server

import "time"

// GenerateRequest is the body of POST /generate
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is returned when a job succeeds
type GenerateResponse struct {
	Transcript string `json:"transcript"`
	Video      string `json:"video"`
	JobID      string `json:"job_id,omitempty"`
}

// ErrorResponse is returned for every failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Kind    string `json:"kind,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// JobResponse is the body of GET /jobs/{id}
type JobResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	SceneName  string     `json:"scene_name,omitempty"`
	Fenced     bool       `json:"fenced"`
	Video      string     `json:"video,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      *JobError  `json:"error,omitempty"`
}

// JobError describes why a job failed
type JobError struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
