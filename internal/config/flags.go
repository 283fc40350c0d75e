// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Command line flag registration and binding

package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"llm-provider": "llm.provider",
	"llm-model":    "llm.model",
	"llm-endpoint": "llm.endpoint",
	"llm-token":    "llm.token",
	"addr":         "server.addr",
	"keep":         "workspace.keep",
	"out":          "workspace.artifact_dir",
	"quality":      "renderer.quality",
	"backend":      "renderer.backend",
	"workspace":    "workspace.root",
}

// RegisterFlags defines the persistent flags shared by every command
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default: .scene-runner.yaml, then ~/.config/scene-runner/config.yaml)")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-format", "", "Log format: console, json")
	fs.BoolP("verbose", "v", false, "Enable verbose output (same as --log-level debug)")
	fs.String("workspace", "", "Scratch root for job workspaces")

	fs.String("llm-provider", "", "LLM provider: anthropic, openai, ollama, http, mock (default: auto-select)")
	fs.String("llm-model", "", "Model name for LLM provider")
	fs.String("llm-endpoint", "", "Endpoint override for the LLM provider")
	fs.String("llm-token", "", "Authentication token for LLM (or env: ANTHROPIC_API_KEY, OPENAI_API_KEY, SRN_LLM_TOKEN)")

	fs.String("backend", "", "Renderer backend: local, docker")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}

	if f := fs.Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("log.level", "debug")
	}
	return nil
}
