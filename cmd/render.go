/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sony-level/scene-runner/internal/config"
	"github.com/sony-level/scene-runner/internal/job"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render [prompt]",
	Short: "Generate and render one scene",
	Long: `Run a single prompt through generation, extraction and rendering.

The prompt is taken from the arguments, from stdin when it is piped,
or asked for interactively on a terminal. The video is copied to --out
(default: the current directory) as <job-id>.mp4.

Examples:
  srn render "visualize the Pythagorean theorem"
  echo "a bouncing ball" | srn render
  srn render --keep --quality m --out ./videos`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRender(cmd, strings.Join(args, " "))
	},
}

func init() {
	renderCmd.Flags().Bool("keep", false, "Keep the job workspace after rendering (debugging)")
	renderCmd.Flags().String("out", "", "Directory the video is copied to (default: current directory)")
	renderCmd.Flags().String("quality", "", "Render quality: l, m, h, p, k (default l)")
	rootCmd.AddCommand(renderCmd)
}

// phases maps job states to the progress lines printed while rendering
var phases = map[job.Status]string{
	job.StatusGenerating: "[1/4] Generate",
	job.StatusExtracting: "[2/4] Extract",
	job.StatusRendering:  "[3/4] Render",
	job.StatusLocating:   "[4/4] Locate",
}

func executeRender(cmd *cobra.Command, prompt string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), prompt)
	if err != nil {
		return err
	}

	// A one-shot run must leave the video somewhere that outlives the process
	cfg, log, err := loadConfig(cmd, func(c *config.Config) {
		if c.Workspace.ArtifactDir == "" && !c.Workspace.Keep {
			c.Workspace.ArtifactDir = "."
		}
	})
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	onTransition := func(j job.Job) {
		if line, ok := phases[j.Status]; ok {
			fmt.Fprintln(out, styleTitle.Render(line))
		}
		switch j.Status {
		case job.StatusExtracting:
			fmt.Fprintf(out, "  → Reply received (%d bytes)\n", len(j.GeneratedMarkdown))
		case job.StatusRendering:
			scene := j.SceneName
			if !j.Fenced {
				fmt.Fprintln(out, styleWarn.Render("  → ⚠ No fenced code block, using the whole reply"))
			}
			fmt.Fprintf(out, "  → Scene %s\n", scene)
		}
	}

	a, err := newApp(ctx, cfg, log, onTransition)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	fmt.Fprintf(out, "Provider: %s  Backend: %s  Quality: %s\n\n", a.provider.Name(), a.invoker.Name(), cfg.Renderer.Quality)

	start := time.Now()
	res, err := a.orch.Run(ctx, prompt)
	if err != nil {
		return err
	}

	switch res := res.(type) {
	case *job.Succeeded:
		fmt.Fprintln(out)
		fmt.Fprintln(out, styleSummary.Render(lipgloss.JoinVertical(lipgloss.Left,
			styleOK.Render("✓ Rendered"),
			row("Job", res.JobID),
			row("Video", res.ArtifactPath),
			row("Duration", time.Since(start).Round(time.Millisecond).String()),
		)))
		if cfg.Log.Level == "debug" && res.Transcript != "" {
			fmt.Fprintln(out, styleMuted.Render(res.Transcript))
		}
		if cfg.Workspace.Keep {
			if snap, ok := a.orch.Get(res.JobID); ok {
				fmt.Fprintf(out, "Workspace kept at %s\n", snap.WorkspacePath)
			}
		}
		return nil

	case *job.Failed:
		fmt.Fprintln(out)
		lines := []string{
			styleErr.Render("✗ " + string(res.Err.Kind)),
			row("Job", res.JobID),
			row("Stage", string(res.Err.Stage)),
			row("Error", res.Err.Message),
		}
		fmt.Fprintln(out, styleSummary.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
		if res.Err.Details != "" {
			fmt.Fprintln(out, styleMuted.Render(res.Err.Details))
		}
		return res.Err
	}
	return errors.New("job finished without a result")
}

// readPrompt returns the argument prompt, piped stdin, or asks on a terminal
func readPrompt(in io.Reader, prompt string) (string, error) {
	if strings.TrimSpace(prompt) != "" {
		return prompt, nil
	}

	if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	var answer string
	err := survey.AskOne(&survey.Input{
		Message: "What should the animation show?",
		Help:    "Describe a short educational scene, e.g. \"show the power rule for derivatives\"",
	}, &answer, survey.WithValidator(survey.Required))
	if errors.Is(err, terminal.InterruptErr) {
		return "", errors.New("cancelled")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return answer, nil
}
