// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Cleanup functionality

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Release removes the workspace directory unless keep is set.
// It runs at most once; later calls return the first result.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		defer w.manager.forget(w.Path)

		if w.manager.keep {
			w.manager.log.Info("workspace kept", zap.String("job_id", w.JobID), zap.String("path", w.Path))
			return
		}

		if err := w.manager.fs.RemoveAll(w.Path); err != nil {
			w.err = fmt.Errorf("failed to cleanup workspace %s: %w", w.Path, err)
			return
		}

		w.manager.log.Debug("workspace released", zap.String("job_id", w.JobID))
	})
	return w.err
}

// CleanupStale removes job workspaces older than maxAge that no live job holds.
// Useful for cleaning up after crashes.
func (m *Manager) CleanupStale(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(m.fs, m.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read workspace root: %w", err)
	}

	now := time.Now()
	cleaned := 0

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), DirPrefix) {
			continue
		}
		if now.Sub(entry.ModTime()) < maxAge {
			continue
		}

		path := filepath.Join(m.root, entry.Name())

		m.mu.Lock()
		_, held := m.active[path]
		m.mu.Unlock()
		if held {
			continue
		}

		if err := m.fs.RemoveAll(path); err == nil {
			cleaned++
		} else {
			m.log.Warn("failed to remove stale workspace", zap.String("path", path), zap.Error(err))
		}
	}

	return cleaned, nil
}
