/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sony-level/scene-runner/internal/config"
	"github.com/sony-level/scene-runner/internal/prereq"
)

// ErrPrerequisites is returned when a required tool is missing
var ErrPrerequisites = errors.New("missing prerequisites")

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the rendering toolchain and configuration",
	Long: `Check that the tools the selected renderer backend needs are installed
and that the configuration (including model credentials) is valid.

Examples:
  srn doctor
  srn doctor --backend docker`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeDoctor(cmd)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func executeDoctor(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(config.LoadOptions{Flags: cmd.Flags(), SkipValidation: true})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, styleTitle.Render(fmt.Sprintf("Toolchain (%s backend)", cfg.Renderer.Backend)))

	checker := prereq.NewChecker()
	summary := checker.CheckBackend(cmd.Context(), cfg.Renderer.Backend)
	for _, r := range summary.Results {
		var mark string
		switch {
		case r.Found:
			mark = styleOK.Render("✓")
		case r.Optional:
			mark = styleWarn.Render("!")
		default:
			mark = styleErr.Render("✗")
		}
		detail := r.Version
		if !r.Found {
			detail = "not found"
			if r.Optional {
				detail += " (optional)"
			}
		}
		fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, "  ", mark, " ", styleLabel.Render(r.Name), styleMuted.Render(detail)))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styleTitle.Render("Configuration"))
	if cfg.File != "" {
		fmt.Fprintln(out, "  "+row("File", cfg.File))
	}
	fmt.Fprintln(out, "  "+row("Provider", fmt.Sprintf("%s (%s)", cfg.LLM.Provider, cfg.LLM.ProviderSource)))
	fmt.Fprintln(out, "  "+row("Workspace", cfg.Workspace.Root))
	configErr := cfg.Validate()
	if configErr != nil {
		fmt.Fprintln(out, "  "+styleErr.Render("✗ "+configErr.Error()))
	} else {
		fmt.Fprintln(out, "  "+styleOK.Render("✓ valid"))
	}

	if len(summary.MissingTools) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, checker.FormatMissing(summary))
	}

	if !summary.AllFound {
		return ErrPrerequisites
	}
	return configErr
}
