// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Main workspace logic

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager allocates per-job workspaces under a shared root.
// Each job gets its own subtree; the set of active paths is the only shared state.
type Manager struct {
	root string
	keep bool
	fs   afero.Fs
	log  *zap.Logger

	mu     sync.Mutex
	active map[string]string // path -> job id
}

// NewManager creates a workspace manager, creating the root if needed
func NewManager(config Config) (*Manager, error) {
	if config.Root == "" {
		config.Root = filepath.Join(os.TempDir(), "scene-runner")
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %s: %w", config.Root, err)
	}

	if err := config.Fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", root, err)
	}

	return &Manager{
		root:   root,
		keep:   config.Keep,
		fs:     config.Fs,
		log:    config.Log.Named("workspace"),
		active: make(map[string]string),
	}, nil
}

// Root returns the absolute scratch root
func (m *Manager) Root() string {
	return m.root
}

// Fs returns the filesystem used by the manager
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// PathFor returns the directory a job would own
func (m *Manager) PathFor(jobID string) string {
	return filepath.Join(m.root, DirPrefix+jobID)
}

// Acquire allocates the workspace for jobID.
// The directory is created exclusively: an existing directory is an error, never reused.
func (m *Manager) Acquire(jobID string) (*Workspace, error) {
	if !validJobID(jobID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}

	path := m.PathFor(jobID)

	m.mu.Lock()
	if owner, ok := m.active[path]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s held by job %s", ErrInUse, path, owner)
	}
	m.active[path] = jobID
	m.mu.Unlock()

	if err := m.fs.Mkdir(path, 0755); err != nil {
		m.forget(path)
		return nil, fmt.Errorf("failed to create workspace directory %s: %w", path, err)
	}

	media := filepath.Join(path, MediaSubdir)
	if err := m.fs.Mkdir(media, 0755); err != nil {
		_ = m.fs.RemoveAll(path)
		m.forget(path)
		return nil, fmt.Errorf("failed to create subdirectory %s: %w", media, err)
	}

	m.log.Debug("workspace acquired", zap.String("job_id", jobID), zap.String("path", path))

	return &Workspace{
		JobID:   jobID,
		Path:    path,
		manager: m,
	}, nil
}

// Active returns the number of workspaces currently held
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) forget(path string) {
	m.mu.Lock()
	delete(m.active, path)
	m.mu.Unlock()
}

// validJobID rejects ids that could escape the root
func validJobID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

// SourcePath returns the path of the single entry point file
func (w *Workspace) SourcePath() string {
	return filepath.Join(w.Path, SourceFile)
}

// MediaDir returns the directory the renderer writes output under
func (w *Workspace) MediaDir() string {
	return filepath.Join(w.Path, MediaSubdir)
}

// ManifestPath returns the path of the debug manifest
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Path, ManifestFile)
}

// Fs returns the filesystem backing the workspace
func (w *Workspace) Fs() afero.Fs {
	return w.manager.fs
}

// WriteSource persists the code as the renderer's entry point
func (w *Workspace) WriteSource(code string) (string, error) {
	path := w.SourcePath()
	if err := afero.WriteFile(w.manager.fs, path, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write source %s: %w", path, err)
	}
	return path, nil
}

// WriteManifest stores v as YAML next to the source.
// Only written when workspaces are kept, otherwise it would be removed unread.
func (w *Workspace) WriteManifest(v any) error {
	if !w.manager.keep {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := afero.WriteFile(w.manager.fs, w.ManifestPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Exists checks if the workspace directory exists
func (w *Workspace) Exists() bool {
	info, err := w.manager.fs.Stat(w.Path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ShouldKeep returns whether the workspace is preserved on release
func (w *Workspace) ShouldKeep() bool {
	return w.manager.keep
}

// String returns a string representation of the workspace
func (w *Workspace) String() string {
	return fmt.Sprintf("Workspace{JobID: %s, Path: %s, Keep: %v}", w.JobID, w.Path, w.manager.keep)
}

// ReleaseAfter schedules Release once d has elapsed.
// Calling Release directly before then releases immediately and stops the timer.
func (w *Workspace) ReleaseAfter(d time.Duration) {
	if d <= 0 {
		_ = w.Release()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(d, func() {
		if err := w.Release(); err != nil {
			w.manager.log.Warn("deferred workspace release failed",
				zap.String("job_id", w.JobID), zap.Error(err))
		}
	})
}
