/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sony-level/scene-runner/internal/config"
	"github.com/sony-level/scene-runner/internal/workspace"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove abandoned job workspaces",
	Long: `Remove job workspaces left behind by crashed or killed runs.

Only directories named job-* under the workspace root and older than
--max-age are removed.

Examples:
  srn cleanup
  srn cleanup --max-age 1h --workspace /var/tmp/scene-runner`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, err := cmd.Flags().GetDuration("max-age")
		if err != nil {
			return err
		}
		return executeCleanup(cmd, maxAge)
	},
}

func init() {
	cleanupCmd.Flags().Duration("max-age", 24*time.Hour, "Minimum age of a workspace to remove")
	rootCmd.AddCommand(cleanupCmd)
}

func executeCleanup(cmd *cobra.Command, maxAge time.Duration) error {
	cfg, err := config.Load(config.LoadOptions{Flags: cmd.Flags(), SkipValidation: true})
	if err != nil {
		return err
	}

	m, err := workspace.NewManager(workspace.Config{Root: cfg.Workspace.Root})
	if err != nil {
		return err
	}

	cleaned, err := m.CleanupStale(maxAge)
	if err != nil {
		return fmt.Errorf("failed to clean %s: %w", m.Root(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale workspace(s) from %s\n", cleaned, m.Root())
	return nil
}
