// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for logger construction

package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/logging"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithWriter("info", logging.FormatJSON, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Debug("hidden")
	log.Info("job finished", zap.String("job_id", "abc"))
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "job finished" || entry["job_id"] != "abc" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithWriter("debug", logging.FormatConsole, &buf)
	if err != nil {
		t.Fatal(err)
	}

	log.Named("render").Debug("line", zap.String("stream", "stdout"))
	_ = log.Sync()

	out := buf.String()
	for _, want := range []string{"DEBUG", "render", "line", "stdout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := logging.New("loud", logging.FormatJSON); err == nil {
		t.Error("New() with bad level should fail")
	}
	if _, err := logging.New("info", "xml"); err == nil {
		t.Error("New() with bad format should fail")
	}
}
