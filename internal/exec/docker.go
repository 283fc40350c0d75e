// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Container sandbox for the renderer

package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/workspace"
)

// ContainerWorkDir is where the workspace is mounted inside the container
const ContainerWorkDir = "/work"

// DefaultImage ships the renderer with its LaTeX and ffmpeg dependencies
const DefaultImage = "manimcommunity/manim:stable"

// DefaultMemoryMB is the container memory limit when none is configured
const DefaultMemoryMB = 2048

// DockerConfig configures the container invoker
type DockerConfig struct {
	Image       string
	Command     string
	MemoryMB    int
	OutputLimit int
	Env         []string
	Log         *zap.Logger
}

// DockerInvoker runs the renderer in a throwaway container with no network
type DockerInvoker struct {
	client *client.Client
	config DockerConfig
	log    *zap.Logger
}

// NewDockerInvoker creates a container invoker using the environment's Docker settings
func NewDockerInvoker(config DockerConfig) (*DockerInvoker, error) {
	if config.Image == "" {
		config.Image = DefaultImage
	}
	if config.MemoryMB <= 0 {
		config.MemoryMB = DefaultMemoryMB
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerInvoker{
		client: cli,
		config: config,
		log:    config.Log.Named("renderer"),
	}, nil
}

// Name returns the backend name
func (d *DockerInvoker) Name() string {
	return "docker"
}

// Close releases the docker client
func (d *DockerInvoker) Close() error {
	return d.client.Close()
}

// containerSpec builds the container and host configuration for one render
func (d *DockerInvoker) containerSpec(ws *workspace.Workspace, opts Options) (*container.Config, *container.HostConfig, error) {
	args, err := BuildArgs(d.config.Command, Paths{
		Source:   path.Join(ContainerWorkDir, workspace.SourceFile),
		MediaDir: path.Join(ContainerWorkDir, workspace.MediaSubdir),
		WorkDir:  ContainerWorkDir,
	}, opts)
	if err != nil {
		return nil, nil, err
	}

	cfg := &container.Config{
		Image:      d.config.Image,
		Cmd:        args,
		WorkingDir: ContainerWorkDir,
		Env:        d.config.Env,
		Labels:     map[string]string{"scene-runner.job": ws.JobID},
	}
	// Files written into the bind mount stay removable by this process
	if runtime.GOOS != "windows" {
		cfg.User = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory: int64(d.config.MemoryMB) * 1024 * 1024,
		},
		Binds: []string{
			fmt.Sprintf("%s:%s:rw", ws.Path, ContainerWorkDir),
		},
	}
	return cfg, hostCfg, nil
}

// Run renders the workspace inside a container. The container is force-removed before Run returns.
func (d *DockerInvoker) Run(ctx context.Context, ws *workspace.Workspace, opts Options) (*RenderResult, error) {
	result := &RenderResult{ExitCode: -1}

	cfg, hostCfg, err := d.containerSpec(ws, opts)
	if err != nil {
		return result, err
	}

	timeout := GetTimeout(opts.Timeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := d.log.With(zap.String("job_id", ws.JobID))

	created, err := d.client.ContainerCreate(runCtx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("render cancelled: %w", ctx.Err())
		}
		return result, fmt.Errorf("failed to create container: %w", err)
	}
	id := created.ID
	defer func() {
		if err := d.client.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true}); err != nil {
			log.Warn("failed to remove container", zap.String("container", id), zap.Error(err))
		}
	}()

	log.Debug("starting container", zap.String("container", id), zap.Strings("argv", cfg.Cmd), zap.Duration("timeout", timeout))

	startTime := time.Now()
	if err := d.client.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("render cancelled: %w", ctx.Err())
		}
		return result, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(runCtx, id, container.WaitConditionNotRunning)

	var waitErr error
	exited := true
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
		if status.Error != nil {
			waitErr = errors.New(status.Error.Message)
		}
	case err := <-errCh:
		if runCtx.Err() != nil {
			exited = false
		} else {
			waitErr = err
		}
	case <-runCtx.Done():
		exited = false
	}

	if !exited {
		if err := d.client.ContainerKill(context.Background(), id, "KILL"); err != nil {
			log.Debug("container kill", zap.String("container", id), zap.Error(err))
		}
	}

	result.Duration = time.Since(startTime)
	d.collectLogs(id, result, log)

	timedOut, err := interrupted(ctx, runCtx, exited)
	if err != nil {
		return result, err
	}
	if timedOut {
		result.TimedOut = true
		result.ExitCode = -1
		log.Warn("renderer timed out", zap.Duration("timeout", timeout), zap.String("container", id))
		return result, nil
	}
	if waitErr != nil {
		return result, fmt.Errorf("container wait failed: %w", waitErr)
	}
	return result, nil
}

// collectLogs demultiplexes the container's output into the result
func (d *DockerInvoker) collectLogs(id string, result *RenderResult, log *zap.Logger) {
	out, err := d.client.ContainerLogs(context.Background(), id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		log.Warn("failed to read container logs", zap.String("container", id), zap.Error(err))
		return
	}
	defer out.Close()

	stdout := newCapture(d.config.OutputLimit, log, "stdout")
	stderr := newCapture(d.config.OutputLimit, log, "stderr")
	if _, err := stdcopy.StdCopy(stdout, stderr, out); err != nil {
		log.Debug("container log copy", zap.Error(err))
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
}
