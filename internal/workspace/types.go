// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// workspace types/constants

package workspace

import (
	"errors"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DirPrefix    = "job-"
	SourceFile   = "scene.py"
	MediaSubdir  = "media"
	ManifestFile = "manifest.yaml"
)

var (
	ErrInvalidJobID = errors.New("invalid job id")
	ErrInUse        = errors.New("workspace already in use")
)

// Workspace is an isolated directory owned by a single job
type Workspace struct {
	JobID string
	Path  string

	manager *Manager
	once    sync.Once
	err     error
	timer   *time.Timer
	mu      sync.Mutex
}

// Config holds configuration for the workspace manager
type Config struct {
	Root string   // Scratch root shared by all jobs
	Keep bool     // Keep directories on release (debugging)
	Fs   afero.Fs // Filesystem, defaults to the OS filesystem
	Log  *zap.Logger
}
