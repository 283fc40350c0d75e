// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Workspace tests

package workspace_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sony-level/scene-runner/internal/workspace"
)

func newManager(t *testing.T, keep bool) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(workspace.Config{Root: t.TempDir(), Keep: keep})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestAcquire(t *testing.T) {
	m := newManager(t, false)

	ws, err := m.Acquire("abc123")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if !ws.Exists() {
		t.Error("Workspace directory does not exist")
	}
	if filepath.Base(ws.Path) != workspace.DirPrefix+"abc123" {
		t.Errorf("Path = %s, want suffix %s", ws.Path, workspace.DirPrefix+"abc123")
	}
	if !strings.HasPrefix(ws.Path, m.Root()) {
		t.Errorf("Path %s not under root %s", ws.Path, m.Root())
	}

	info, err := os.Stat(ws.MediaDir())
	if err != nil || !info.IsDir() {
		t.Errorf("media dir missing: %v", err)
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}
}

func TestAcquire_InvalidIDs(t *testing.T) {
	m := newManager(t, false)

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "x..y"} {
		if _, err := m.Acquire(id); !errors.Is(err, workspace.ErrInvalidJobID) {
			t.Errorf("Acquire(%q) error = %v, want ErrInvalidJobID", id, err)
		}
	}
}

func TestAcquire_SameIDTwice(t *testing.T) {
	m := newManager(t, false)

	if _, err := m.Acquire("dup"); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if _, err := m.Acquire("dup"); !errors.Is(err, workspace.ErrInUse) {
		t.Errorf("second Acquire() error = %v, want ErrInUse", err)
	}
}

func TestAcquire_ExistingDirectoryNotReused(t *testing.T) {
	m := newManager(t, false)

	if err := os.MkdirAll(m.PathFor("stale"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("stale"); err == nil {
		t.Error("Acquire() over an existing directory should fail")
	}
	if m.Active() != 0 {
		t.Errorf("failed acquisition left %d active entries", m.Active())
	}
}

func TestWriteSource(t *testing.T) {
	m := newManager(t, false)
	ws, err := m.Acquire("src")
	if err != nil {
		t.Fatal(err)
	}

	path, err := ws.WriteSource("print(1)")
	if err != nil {
		t.Fatalf("WriteSource() error = %v", err)
	}
	if path != ws.SourcePath() {
		t.Errorf("WriteSource() path = %s, want %s", path, ws.SourcePath())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print(1)" {
		t.Errorf("source = %q, want %q", data, "print(1)")
	}
}

func TestRelease(t *testing.T) {
	m := newManager(t, false)
	ws, err := m.Acquire("rel")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ws.WriteSource("x"); err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ws.Exists() {
		t.Error("Workspace should be removed after Release()")
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d after release, want 0", m.Active())
	}

	// Second release is a no-op
	if err := ws.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	// The id may be acquired again once released
	if _, err := m.Acquire("rel"); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestRelease_Keep(t *testing.T) {
	m := newManager(t, true)
	ws, err := m.Acquire("keep")
	if err != nil {
		t.Fatal(err)
	}

	if err := ws.WriteManifest(map[string]string{"prompt": "draw a circle"}); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !ws.Exists() {
		t.Error("kept workspace should survive Release()")
	}

	data, err := os.ReadFile(ws.ManifestPath())
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if !strings.Contains(string(data), "draw a circle") {
		t.Errorf("manifest = %q, want prompt", data)
	}
}

func TestWriteManifest_SkippedWithoutKeep(t *testing.T) {
	m := newManager(t, false)
	ws, err := m.Acquire("nomanifest")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteManifest(map[string]string{"a": "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.ManifestPath()); !os.IsNotExist(err) {
		t.Errorf("manifest should not be written without keep, stat err = %v", err)
	}
}

func TestReleaseAfter(t *testing.T) {
	m := newManager(t, false)
	ws, err := m.Acquire("later")
	if err != nil {
		t.Fatal(err)
	}

	ws.ReleaseAfter(20 * time.Millisecond)
	if !ws.Exists() {
		t.Fatal("workspace released too early")
	}

	deadline := time.Now().Add(2 * time.Second)
	for ws.Exists() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ws.Exists() {
		t.Error("workspace not released after retention window")
	}
}

func TestReleaseAfter_ReleaseEarly(t *testing.T) {
	m := newManager(t, false)
	ws, err := m.Acquire("early")
	if err != nil {
		t.Fatal(err)
	}

	ws.ReleaseAfter(time.Hour)
	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ws.Exists() {
		t.Error("Release() should not wait for the retention timer")
	}
}

// Concurrent jobs must never share filesystem entries
func TestConcurrentIsolation(t *testing.T) {
	m := newManager(t, false)

	const jobs = 16
	var wg sync.WaitGroup
	paths := make([]string, jobs)
	errs := make([]error, jobs)

	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := m.Acquire(fmt.Sprintf("job%02d", i))
			if err != nil {
				errs[i] = err
				return
			}
			code := fmt.Sprintf("print(%d)", i)
			if _, err := ws.WriteSource(code); err != nil {
				errs[i] = err
				return
			}
			paths[i] = ws.SourcePath()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("job %d: %v", i, err)
		}
		if prev, ok := seen[paths[i]]; ok {
			t.Fatalf("jobs %d and %d share %s", prev, i, paths[i])
		}
		seen[paths[i]] = i

		data, err := os.ReadFile(paths[i])
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("print(%d)", i); string(data) != want {
			t.Errorf("job %d source = %q, want %q (write collision)", i, data, want)
		}
	}
}

func TestCleanupStale(t *testing.T) {
	m := newManager(t, false)

	held, err := m.Acquire("held")
	if err != nil {
		t.Fatal(err)
	}

	stale := m.PathFor("abandoned")
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	unrelated := filepath.Join(m.Root(), "not-a-job")
	if err := os.MkdirAll(unrelated, 0755); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{held.Path, stale, unrelated} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	cleaned, err := m.CleanupStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupStale() error = %v", err)
	}
	if cleaned != 1 {
		t.Errorf("CleanupStale() = %d, want 1", cleaned)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale workspace should be removed")
	}
	if !held.Exists() {
		t.Error("held workspace must not be removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("non-job directory must not be removed")
	}
}

func TestMemFs(t *testing.T) {
	m, err := workspace.NewManager(workspace.Config{Root: "/scratch", Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatal(err)
	}

	ws, err := m.Acquire("mem")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := ws.WriteSource("code"); err != nil {
		t.Fatal(err)
	}

	ok, err := afero.Exists(m.Fs(), ws.SourcePath())
	if err != nil || !ok {
		t.Errorf("source missing in memory fs: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Fatal(err)
	}
	if ws.Exists() {
		t.Error("memory workspace should be removed")
	}
}
