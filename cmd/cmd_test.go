//go:build !windows

/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRenderer writes a video where manim would and prints a transcript
const fakeRenderer = `sh -c 'mkdir -p "$1/videos/scene/480p15" && printf video > "$1/videos/scene/480p15/$2.mp4" && echo "File ready at $2.mp4"' sh {media_dir} {scene}`

func setupEnv(t *testing.T) (root, out string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("SRN_LLM_PROVIDER", "mock")
	t.Setenv("SRN_RENDERER_COMMAND", fakeRenderer)
	t.Setenv("SRN_LOG_LEVEL", "error")

	root = filepath.Join(t.TempDir(), "scratch")
	out = t.TempDir()
	t.Setenv("SRN_WORKSPACE_ROOT", root)
	return root, out
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRenderCommand(t *testing.T) {
	root, out := setupEnv(t)

	output, err := execute(t, "render", "--out", out, "draw a blue circle")
	if err != nil {
		t.Fatalf("render error = %v\n%s", err, output)
	}

	for _, want := range []string{"[1/4] Generate", "[3/4] Render", "Scene GeneratedScene", "Rendered"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	videos, err := filepath.Glob(filepath.Join(out, "*.mp4"))
	if err != nil || len(videos) != 1 {
		t.Fatalf("videos in --out = %v (%v), want exactly one", videos, err)
	}
	data, err := os.ReadFile(videos[0])
	if err != nil || string(data) != "video" {
		t.Errorf("video = %q, %v", data, err)
	}

	// Relocated artifacts leave no workspace behind
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("scratch root not empty: %v", entries)
	}
}

func TestCleanupCommand(t *testing.T) {
	root, _ := setupEnv(t)

	stale := filepath.Join(root, "job-abandoned")
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, "cleanup", "--max-age", "1h")
	if err != nil {
		t.Fatalf("cleanup error = %v", err)
	}
	if !strings.Contains(output, "Removed 1 stale workspace") {
		t.Errorf("output = %q", output)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale workspace still present: %v", err)
	}
}
