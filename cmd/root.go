/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sony-level/scene-runner/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "srn",
	Short: "Turn a prompt into a rendered animation",
	Long: `srn (scene-runner) asks a language model for a Manim scene, extracts
the code from its reply, renders it in an isolated per-job workspace and
returns the video together with the renderer's transcript.

It runs either as an HTTP service (POST /generate) or as a one-shot CLI.

Examples:
  srn serve --addr :8080
  srn render "show the power rule for derivatives"
  srn render --keep --out ./videos
  srn doctor
  srn cleanup --max-age 24h`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Persistent flags - available to all subcommands
	config.RegisterFlags(rootCmd.PersistentFlags())
}
