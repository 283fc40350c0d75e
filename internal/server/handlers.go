// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Request handlers

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/job"
)

// MsgPromptRequired is the error for a missing or blank prompt
const MsgPromptRequired = "Prompt is required"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /generate runs one job to completion
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgPromptRequired})
		return
	}

	res, err := s.orch.Run(r.Context(), req.Prompt)
	if err != nil {
		var jobErr *job.Error
		switch {
		case errors.As(err, &jobErr) && jobErr.Kind == job.KindValidation:
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationMessage(jobErr), Kind: string(jobErr.Kind)})
		case errors.Is(err, job.ErrClosed):
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Server is shutting down"})
		default:
			s.log.Error("failed to submit job", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to submit job"})
		}
		return
	}

	switch res := res.(type) {
	case *job.Succeeded:
		writeJSON(w, http.StatusOK, GenerateResponse{
			Transcript: res.Transcript,
			Video:      res.ArtifactPath,
			JobID:      res.JobID,
		})
	case *job.Failed:
		status := http.StatusInternalServerError
		if res.Err.Kind == job.KindValidation {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, failureResponse(res))
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Job finished without a result"})
	}
}

// GET /jobs/{id} returns a job snapshot while it is indexed
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.orch.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Job not found"})
		return
	}

	resp := JobResponse{
		ID:        snap.ID,
		Status:    string(snap.Status),
		SceneName: snap.SceneName,
		Fenced:    snap.Fenced,
		Video:     snap.ArtifactPath,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	if !snap.FinishedAt.IsZero() {
		finished := snap.FinishedAt
		resp.FinishedAt = &finished
	}
	if snap.Err != nil {
		resp.Error = &JobError{
			Kind:    string(snap.Err.Kind),
			Stage:   string(snap.Err.Stage),
			Message: snap.Err.Message,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /videos/{id} serves the artifact of a succeeded job while it is retained
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.orch.Get(id)
	if !ok || snap.Status != job.StatusSucceeded || snap.ArtifactPath == "" {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Video not found"})
		return
	}

	f, err := s.config.Fs.Open(snap.ArtifactPath)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Video not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to read video"})
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, id+".mp4", info.ModTime(), f)
}

// failureResponse maps a failed job onto the public error body
func failureResponse(res *job.Failed) ErrorResponse {
	e := res.Err
	resp := ErrorResponse{
		Error:   failureMessage(e.Kind),
		Details: e.Details,
		Kind:    string(e.Kind),
		JobID:   res.JobID,
	}
	if resp.Details == "" && e.Kind != job.KindCancelled {
		resp.Details = e.Error()
	}
	return resp
}

func failureMessage(kind job.Kind) string {
	switch kind {
	case job.KindValidation:
		return MsgPromptRequired
	case job.KindUpstreamGeneration:
		return "Failed to generate scene code"
	case job.KindTimeout:
		return "Scene generation timed out"
	case job.KindExtractionFallback, job.KindPolicyViolation:
		return "Generated code was rejected"
	case job.KindRenderTimeout:
		return "Rendering timed out"
	case job.KindRenderFailure:
		return "Rendering failed"
	case job.KindArtifactMissing:
		return "Rendered video not found"
	case job.KindCancelled:
		return "Request cancelled"
	default:
		return "Internal error"
	}
}

func validationMessage(e *job.Error) string {
	msg := e.Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
