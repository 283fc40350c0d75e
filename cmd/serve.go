/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation API over HTTP",
	Long: `Start the HTTP service.

Endpoints:
  POST /generate     {"prompt": "..."} -> {"transcript": "...", "video": "..."}
  GET  /jobs/{id}    job status while it is retained
  GET  /videos/{id}  rendered video while it is retained
  GET  /healthz      liveness

Examples:
  srn serve
  srn serve --addr 127.0.0.1:9000 --log-format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeServe(cmd)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}

func executeServe(cmd *cobra.Command) error {
	cfg, log, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		return err
	}

	if stale, err := a.workspaces.CleanupStale(cfg.Workspace.Retention * 2); err != nil {
		log.Warn("stale workspace cleanup failed", zap.Error(err))
	} else if stale > 0 {
		log.Info("removed stale workspaces", zap.Int("count", stale))
	}

	log.Info("renderer ready",
		zap.String("backend", a.invoker.Name()),
		zap.String("quality", cfg.Renderer.Quality),
		zap.Duration("timeout", cfg.Renderer.Timeout),
		zap.String("workspace_root", a.workspaces.Root()),
		zap.Int("max_jobs", cfg.Limits.MaxJobs),
		zap.Int("max_generate", cfg.Limits.MaxGenerate),
		zap.Int("max_render", cfg.Limits.MaxRender))

	srv := server.New(a.orch, server.Config{
		Addr:            cfg.Server.Addr,
		BodyLimit:       cfg.Server.BodyLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Fs:              a.workspaces.Fs(),
		Log:             log,
	})
	serveErr := srv.ListenAndServe(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	return serveErr
}
