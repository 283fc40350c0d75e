/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/artifact"
	"github.com/sony-level/scene-runner/internal/config"
	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/job"
	"github.com/sony-level/scene-runner/internal/llm"
	_ "github.com/sony-level/scene-runner/internal/llm/provider"
	"github.com/sony-level/scene-runner/internal/logging"
	"github.com/sony-level/scene-runner/internal/security"
	"github.com/sony-level/scene-runner/internal/workspace"
)

// app holds the wired components shared by serve and render
type app struct {
	cfg        config.Config
	log        *zap.Logger
	provider   llm.Provider
	workspaces *workspace.Manager
	invoker    exec.Invoker
	orch       *job.Orchestrator
	closers    []func() error
}

// loadConfig resolves configuration from the command's flags and builds the logger
func loadConfig(cmd *cobra.Command, adjust func(*config.Config)) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{Flags: cmd.Flags(), SkipValidation: adjust != nil})
	if err != nil {
		return config.Config{}, nil, err
	}
	if adjust != nil {
		adjust(&cfg)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, err
		}
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cfg.File != "" {
		log.Debug("config loaded", zap.String("file", cfg.File))
	}
	return cfg, log, nil
}

// newApp wires every component from configuration
func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, onTransition func(job.Job)) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var err error
	a.provider, err = llm.NewProvider(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	log.Info("llm provider selected",
		zap.String("provider", a.provider.Name()),
		zap.String("source", cfg.LLM.ProviderSource),
		zap.String("model", cfg.LLM.Model),
		zap.String("token", llm.MaskToken(llm.GetProviderToken(llm.ProviderType(cfg.LLM.Provider), cfg.LLM.Token))))
	if llm.ProviderType(cfg.LLM.Provider) == llm.ProviderOllama && !llm.IsOllamaAvailable(ctx) {
		log.Warn("ollama is not reachable, generation will fail until it is", zap.String("url", llm.OllamaBaseURL()))
	}

	policy, err := security.NewPolicyChecker(cfg.PolicyConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build source policy: %w", err)
	}

	a.workspaces, err = workspace.NewManager(workspace.Config{
		Root: cfg.Workspace.Root,
		Keep: cfg.Workspace.Keep,
		Log:  log,
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Renderer.Backend {
	case "docker":
		d, err := exec.NewDockerInvoker(exec.DockerConfig{
			Image:       cfg.Renderer.Image,
			Command:     cfg.Renderer.Command,
			MemoryMB:    cfg.Renderer.MemoryMB,
			OutputLimit: cfg.Renderer.OutputLimit,
			Log:         log,
		})
		if err != nil {
			return nil, err
		}
		a.invoker = d
		a.closers = append(a.closers, d.Close)
	default:
		a.invoker = exec.NewLocalInvoker(exec.LocalConfig{
			Command:     cfg.Renderer.Command,
			OutputLimit: cfg.Renderer.OutputLimit,
			Log:         log,
		})
	}

	client := llm.NewClient(a.provider, llm.ClientConfig{
		MaxRetries:      cfg.LLM.MaxRetries,
		RetryBackoff:    cfg.LLM.RetryBackoff,
		MaxPromptLength: cfg.LLM.MaxPromptLength,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		SceneName:       cfg.Renderer.DefaultScene,
		Log:             log,
	})

	a.orch, err = job.New(job.Options{
		Generator:     client,
		Policy:        policy,
		Workspaces:    a.workspaces,
		Invoker:       a.invoker,
		Locator:       artifact.NewLocator(artifact.Config{Quality: cfg.Renderer.Quality, Log: log}),
		Quality:       cfg.Renderer.Quality,
		RenderTimeout: cfg.Renderer.Timeout,
		DefaultScene:  cfg.Renderer.DefaultScene,
		MaxJobs:       cfg.Limits.MaxJobs,
		MaxGenerate:   cfg.Limits.MaxGenerate,
		MaxRender:     cfg.Limits.MaxRender,
		ArtifactDir:   cfg.Workspace.ArtifactDir,
		Retention:     cfg.Workspace.Retention,
		OnTransition:  onTransition,
		Log:           log,
	})
	if err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

// Close drains jobs and releases backend resources
func (a *app) Close(ctx context.Context) error {
	err := a.orch.Close(ctx)
	return errors.Join(err, a.closeAll())
}

func (a *app) closeAll() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
