// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Rendered artifact discovery and relocation

package artifact

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/workspace"
)

// Extension of rendered videos
const Extension = ".mp4"

// ErrArtifactMissing is returned when no non-empty artifact exists
var ErrArtifactMissing = errors.New("rendered artifact not found")

// qualityDirs maps a quality flag to the renderer's output directory name
var qualityDirs = map[string]string{
	"l": "480p15",
	"m": "720p30",
	"h": "1080p60",
	"p": "1440p60",
	"k": "2160p60",
}

// QualityDir returns the output directory name for a quality flag
func QualityDir(quality string) string {
	if dir, ok := qualityDirs[quality]; ok {
		return dir
	}
	return qualityDirs["l"]
}

// Config configures the locator
type Config struct {
	Quality string
	Log     *zap.Logger
}

// Locator finds the artifact a render produced
type Locator struct {
	quality string
	log     *zap.Logger
}

// NewLocator creates a locator for the given quality profile
func NewLocator(config Config) *Locator {
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	return &Locator{
		quality: config.Quality,
		log:     config.Log.Named("artifact"),
	}
}

// ExpectedPath returns the conventional artifact path inside ws
func (l *Locator) ExpectedPath(ws *workspace.Workspace, sceneName string) string {
	stem := strings.TrimSuffix(workspace.SourceFile, filepath.Ext(workspace.SourceFile))
	return filepath.Join(ws.MediaDir(), "videos", stem, QualityDir(l.quality), sceneName+Extension)
}

// Locate returns the conventional artifact path once it holds a non-empty file.
// Output written anywhere else does not count.
func (l *Locator) Locate(ws *workspace.Workspace, sceneName string) (string, error) {
	expected := l.ExpectedPath(ws, sceneName)
	if !nonEmpty(ws.Fs(), expected) {
		l.log.Debug("artifact missing",
			zap.String("job_id", ws.JobID),
			zap.String("expected", expected))
		return "", fmt.Errorf("%w: %s", ErrArtifactMissing, expected)
	}
	return expected, nil
}

func nonEmpty(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Relocate copies the artifact at src to <destDir>/<jobID>.mp4 and returns the new path.
// The copy is written under a temporary name and renamed, so readers never see a partial file.
func Relocate(fs afero.Fs, src, destDir, jobID string) (string, error) {
	if err := fs.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", destDir, err)
	}

	dest := filepath.Join(destDir, jobID+Extension)

	in, err := fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := afero.TempFile(fs, destDir, "."+jobID+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return "", fmt.Errorf("failed to flush artifact: %w", err)
	}
	if err := fs.Rename(tmpName, dest); err != nil {
		_ = fs.Remove(tmpName)
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return dest, nil
}
