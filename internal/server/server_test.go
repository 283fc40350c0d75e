// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for the HTTP surface

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sony-level/scene-runner/internal/artifact"
	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/job"
	"github.com/sony-level/scene-runner/internal/llm"
	"github.com/sony-level/scene-runner/internal/llm/provider"
	"github.com/sony-level/scene-runner/internal/security"
	"github.com/sony-level/scene-runner/internal/server"
	"github.com/sony-level/scene-runner/internal/workspace"
)

const dummyVideo = "0123456789abcdef"

type stubInvoker struct {
	stdout   string
	stderr   string
	exitCode int
	write    bool
}

func (s *stubInvoker) Name() string { return "stub" }

func (s *stubInvoker) Run(_ context.Context, ws *workspace.Workspace, opts exec.Options) (*exec.RenderResult, error) {
	if s.write {
		path := artifact.NewLocator(artifact.Config{Quality: opts.Quality}).ExpectedPath(ws, opts.SceneName)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(dummyVideo), 0644); err != nil {
			return nil, err
		}
	}
	return &exec.RenderResult{Stdout: s.stdout, Stderr: s.stderr, ExitCode: s.exitCode}, nil
}

func newServer(t *testing.T, p llm.Provider, inv exec.Invoker) (*server.Server, *job.Orchestrator) {
	t.Helper()

	policy, err := security.NewPolicyChecker(security.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	workspaces, err := workspace.NewManager(workspace.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	orch, err := job.New(job.Options{
		Generator:    llm.NewClient(p, llm.ClientConfig{}),
		Policy:       policy,
		Workspaces:   workspaces,
		Invoker:      inv,
		Locator:      artifact.NewLocator(artifact.Config{Quality: exec.QualityLow}),
		Quality:      exec.QualityLow,
		DefaultScene: llm.DefaultSceneName,
		Retention:    time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = orch.Close(context.Background()) })

	return server.New(orch, server.Config{BodyLimit: 1024}), orch
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGenerate_PromptRequired(t *testing.T) {
	s, _ := newServer(t, provider.NewMockProvider(), &stubInvoker{write: true})

	for _, body := range []string{`{}`, `{"prompt": ""}`, `{"prompt": "   "}`, ``} {
		rec := post(t, s.Handler(), body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		resp := decode[server.ErrorResponse](t, rec)
		if resp.Error != "Prompt is required" {
			t.Errorf("body %q: error = %q, want %q", body, resp.Error, "Prompt is required")
		}
	}
}

func TestGenerate_InvalidBody(t *testing.T) {
	s, _ := newServer(t, provider.NewMockProvider(), &stubInvoker{write: true})

	rec := post(t, s.Handler(), `{"prompt": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = post(t, s.Handler(), `{"prompt": "`+strings.Repeat("x", 2048)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", rec.Code)
	}
	if resp := decode[server.ErrorResponse](t, rec); resp.Error != "Request body too large" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestGenerate_PromptTooLong(t *testing.T) {
	_, orch := newServer(t, provider.NewMockProvider(), &stubInvoker{write: true})
	s := server.New(orch, server.Config{BodyLimit: 64 << 10})

	rec := post(t, s.Handler(), `{"prompt": "`+strings.Repeat("é", llm.DefaultMaxPromptLength+1)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode[server.ErrorResponse](t, rec)
	if resp.Kind != string(job.KindValidation) || !strings.Contains(resp.Error, "limit") {
		t.Errorf("response = %+v", resp)
	}
}

// Stub generator and renderer produce a 200 with the dummy file path and captured stdout
func TestGenerate_EndToEnd(t *testing.T) {
	p := provider.NewMockProviderWithReply("```python\nprint(1)\n```")
	inv := &stubInvoker{stdout: "Rendered GeneratedScene", write: true}
	s, orch := newServer(t, p, inv)

	rec := post(t, s.Handler(), `{"prompt": "draw a circle"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[server.GenerateResponse](t, rec)
	if resp.Transcript != "Rendered GeneratedScene" {
		t.Errorf("transcript = %q, want stub stdout", resp.Transcript)
	}
	data, err := os.ReadFile(resp.Video)
	if err != nil {
		t.Fatalf("video %q not readable: %v", resp.Video, err)
	}
	if string(data) != dummyVideo {
		t.Errorf("video content = %q, want dummy file", data)
	}
	if filepath.Base(resp.Video) != "GeneratedScene.mp4" {
		t.Errorf("video = %s, want convention path", resp.Video)
	}

	snap, ok := orch.Get(resp.JobID)
	if !ok || snap.ExtractedCode != "print(1)" {
		t.Errorf("job snapshot = %+v", snap)
	}
}

func TestGenerate_RenderFailure(t *testing.T) {
	p := provider.NewMockProviderWithReply("```python\nprint(1)\n```")
	inv := &stubInvoker{exitCode: 1, stderr: "Traceback: boom"}
	s, _ := newServer(t, p, inv)

	rec := post(t, s.Handler(), `{"prompt": "draw a circle"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[server.ErrorResponse](t, rec)
	if resp.Details != "Traceback: boom" {
		t.Errorf("details = %q, want renderer stderr", resp.Details)
	}
	if resp.Kind != string(job.KindRenderFailure) {
		t.Errorf("kind = %q", resp.Kind)
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
}

func TestGenerate_ArtifactMissing(t *testing.T) {
	p := provider.NewMockProviderWithReply("```python\nprint(1)\n```")
	s, _ := newServer(t, p, &stubInvoker{stdout: "ok"})

	rec := post(t, s.Handler(), `{"prompt": "draw a circle"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decode[server.ErrorResponse](t, rec); resp.Kind != string(job.KindArtifactMissing) {
		t.Errorf("kind = %q, want artifact_missing", resp.Kind)
	}
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	p := provider.NewMockProviderWithError(&llm.StatusError{Code: 502, Body: "bad gateway"})
	s, _ := newServer(t, p, &stubInvoker{write: true})

	rec := post(t, s.Handler(), `{"prompt": "draw a circle"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[server.ErrorResponse](t, rec)
	if resp.Kind != string(job.KindUpstreamGeneration) || !strings.Contains(resp.Details, "502") {
		t.Errorf("response = %+v", resp)
	}
}

func TestJobAndVideoEndpoints(t *testing.T) {
	p := provider.NewMockProviderWithReply("```python\nprint(1)\n```")
	s, _ := newServer(t, p, &stubInvoker{stdout: "done", write: true})
	h := s.Handler()

	resp := decode[server.GenerateResponse](t, post(t, h, `{"prompt": "draw a circle"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+resp.JobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /jobs status = %d", rec.Code)
	}
	jr := decode[server.JobResponse](t, rec)
	if jr.Status != "succeeded" || jr.Video != resp.Video || jr.FinishedAt == nil {
		t.Errorf("job response = %+v", jr)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/"+resp.JobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /videos status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "video/mp4" || rec.Body.String() != dummyVideo {
		t.Errorf("video response = %s %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}

	for _, path := range []string{"/jobs/unknown", "/videos/unknown"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

// fixedOrchestrator reports one stored job
type fixedOrchestrator struct{ j job.Job }

func (f fixedOrchestrator) Run(context.Context, string) (job.Result, error) {
	return nil, job.ErrClosed
}

func (f fixedOrchestrator) Get(id string) (job.Job, bool) {
	return f.j, id == f.j.ID
}

func TestGetVideo_ServesFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/artifacts/job-1.mp4"
	if err := afero.WriteFile(fs, path, []byte(dummyVideo), 0644); err != nil {
		t.Fatal(err)
	}

	orch := fixedOrchestrator{j: job.Job{ID: "job-1", Status: job.StatusSucceeded, ArtifactPath: path}}
	h := server.New(orch, server.Config{Fs: fs}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/job-1", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != dummyVideo {
		t.Fatalf("GET /videos = %d %q", rec.Code, rec.Body.String())
	}

	if err := fs.Remove(path); err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/job-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /videos after removal = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newServer(t, provider.NewMockProvider(), &stubInvoker{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %s", rec.Header().Get("Content-Type"))
	}
}

func TestServe_Shutdown(t *testing.T) {
	s, _ := newServer(t, provider.NewMockProvider(), &stubInvoker{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	res, err := http.Post("http://"+ln.Addr().String()+"/generate", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "Prompt is required") {
		t.Errorf("response = %d %s", res.StatusCode, body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
