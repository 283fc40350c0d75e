// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Configuration loading with precedence: CLI > ENV > config file > defaults

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sony-level/scene-runner/internal/exec"
	"github.com/sony-level/scene-runner/internal/llm"
	"github.com/sony-level/scene-runner/internal/security"
)

// EnvPrefix is prepended to every environment override, e.g. SRN_LLM_PROVIDER
const EnvPrefix = "SRN"

// Config is the complete runtime configuration.
// It is built once at startup and passed by value; nothing mutates it afterwards.
type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Renderer   RendererConfig
	Workspace  WorkspaceConfig
	Limits     LimitsConfig
	Extraction ExtractionConfig
	Security   SecurityConfig
	Log        LogConfig

	// File is the config file that was read, empty when none was found
	File string
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr            string
	BodyLimit       int64
	ShutdownTimeout time.Duration
}

// LLMConfig configures the generation client
type LLMConfig struct {
	Provider        string
	ProviderSource  string // cli, env, config or auto
	Model           string
	Endpoint        string
	Token           string
	Timeout         time.Duration
	MaxTokens       int
	MaxReplyBytes   int64
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxPromptLength int
	Temperature     float64
}

// RendererConfig configures renderer invocation
type RendererConfig struct {
	Backend      string // local or docker
	Command      string
	Quality      string
	Timeout      time.Duration
	DefaultScene string
	OutputLimit  int
	Image        string
	MemoryMB     int
}

// WorkspaceConfig configures per-job directories
type WorkspaceConfig struct {
	Root        string
	Keep        bool
	Retention   time.Duration
	ArtifactDir string
}

// LimitsConfig bounds concurrency
type LimitsConfig struct {
	MaxJobs     int
	MaxGenerate int
	MaxRender   int
}

// ExtractionConfig configures code extraction
type ExtractionConfig struct {
	Fallback string // allow or reject
}

// SecurityConfig configures the source policy
type SecurityConfig struct {
	BlockedPatterns []string
	MaxSourceBytes  int
}

// LogConfig configures logging
type LogConfig struct {
	Level  string
	Format string
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	ConfigFile string         // Explicit config file, skips the search
	EnvFile    string         // Dotenv file, ".env" when empty
	Flags      *pflag.FlagSet // Parsed command line flags

	// SkipValidation returns the resolved values even when they would not validate.
	// Used by commands that only need part of the configuration.
	SkipValidation bool
}

// ConfigPaths returns the paths to check for config files in order
func ConfigPaths() []string {
	var paths []string

	// Current directory
	paths = append(paths, ".scene-runner.yaml", ".scene-runner.yml")

	// XDG config directory
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths,
			filepath.Join(xdg, "scene-runner", "config.yaml"),
			filepath.Join(xdg, "scene-runner", "config.yml"),
		)
	}

	// Home directory
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "scene-runner", "config.yaml"),
			filepath.Join(home, ".config", "scene-runner", "config.yml"),
			filepath.Join(home, ".scene-runner.yaml"),
		)
	}

	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", 64<<10)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.timeout", llm.DefaultTimeout.String())
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.max_reply_bytes", llm.DefaultMaxReplyBytes)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_backoff", llm.DefaultRetryBackoff.String())
	v.SetDefault("llm.max_prompt_length", llm.DefaultMaxPromptLength)
	v.SetDefault("llm.temperature", llm.DefaultTemperature)

	v.SetDefault("renderer.backend", "local")
	v.SetDefault("renderer.command", exec.DefaultCommand)
	v.SetDefault("renderer.quality", exec.QualityLow)
	v.SetDefault("renderer.timeout", exec.DefaultRenderTimeout.String())
	v.SetDefault("renderer.default_scene", llm.DefaultSceneName)
	v.SetDefault("renderer.output_limit", exec.DefaultOutputLimit)
	v.SetDefault("renderer.image", exec.DefaultImage)
	v.SetDefault("renderer.memory_mb", exec.DefaultMemoryMB)

	v.SetDefault("workspace.root", filepath.Join(os.TempDir(), "scene-runner"))
	v.SetDefault("workspace.keep", false)
	v.SetDefault("workspace.retention", "10m")
	v.SetDefault("workspace.artifact_dir", "")

	v.SetDefault("limits.max_jobs", 8)
	v.SetDefault("limits.max_generate", 4)
	v.SetDefault("limits.max_render", 2)

	v.SetDefault("extraction.fallback", security.FallbackAllow)

	v.SetDefault("security.blocked_patterns", security.DefaultBlockedPatterns)
	v.SetDefault("security.max_source_bytes", security.DefaultMaxSourceBytes)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load resolves the configuration and validates it
func Load(opts LoadOptions) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Existing environment variables win over the dotenv file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := opts.ConfigFile
	if configFile == "" && opts.Flags != nil {
		if f := opts.Flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile == "" {
		for _, path := range ConfigPaths() {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return Config{}, err
		}
	}

	cfg := fromViper(v)
	cfg.File = configFile
	cfg.LLM.ProviderSource = providerSource(v, opts.Flags, configFile)

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = string(autoSelectProvider())
		cfg.LLM.ProviderSource = "auto"
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			BodyLimit:       v.GetInt64("server.body_limit"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(v.GetString("llm.provider")),
			Model:           v.GetString("llm.model"),
			Endpoint:        v.GetString("llm.endpoint"),
			Token:           v.GetString("llm.token"),
			Timeout:         v.GetDuration("llm.timeout"),
			MaxTokens:       v.GetInt("llm.max_tokens"),
			MaxReplyBytes:   v.GetInt64("llm.max_reply_bytes"),
			MaxRetries:      v.GetInt("llm.max_retries"),
			RetryBackoff:    v.GetDuration("llm.retry_backoff"),
			MaxPromptLength: v.GetInt("llm.max_prompt_length"),
			Temperature:     v.GetFloat64("llm.temperature"),
		},
		Renderer: RendererConfig{
			Backend:      strings.ToLower(v.GetString("renderer.backend")),
			Command:      v.GetString("renderer.command"),
			Quality:      v.GetString("renderer.quality"),
			Timeout:      v.GetDuration("renderer.timeout"),
			DefaultScene: v.GetString("renderer.default_scene"),
			OutputLimit:  v.GetInt("renderer.output_limit"),
			Image:        v.GetString("renderer.image"),
			MemoryMB:     v.GetInt("renderer.memory_mb"),
		},
		Workspace: WorkspaceConfig{
			Root:        v.GetString("workspace.root"),
			Keep:        v.GetBool("workspace.keep"),
			Retention:   v.GetDuration("workspace.retention"),
			ArtifactDir: v.GetString("workspace.artifact_dir"),
		},
		Limits: LimitsConfig{
			MaxJobs:     v.GetInt("limits.max_jobs"),
			MaxGenerate: v.GetInt("limits.max_generate"),
			MaxRender:   v.GetInt("limits.max_render"),
		},
		Extraction: ExtractionConfig{
			Fallback: strings.ToLower(v.GetString("extraction.fallback")),
		},
		Security: SecurityConfig{
			BlockedPatterns: v.GetStringSlice("security.blocked_patterns"),
			MaxSourceBytes:  v.GetInt("security.max_source_bytes"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
}

// providerSource reports which layer chose the provider
func providerSource(v *viper.Viper, flags *pflag.FlagSet, configFile string) string {
	if flags != nil {
		if f := flags.Lookup("llm-provider"); f != nil && f.Changed {
			return "cli"
		}
	}
	if os.Getenv(EnvPrefix+"_LLM_PROVIDER") != "" {
		return "env"
	}
	if configFile != "" && v.InConfig("llm.provider") {
		return "config"
	}
	return "default"
}

// autoSelectProvider chooses a provider from the credentials present.
// Priority: anthropic > openai; with no key the anthropic default fails validation.
func autoSelectProvider() llm.ProviderType {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return llm.ProviderAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return llm.ProviderOpenAI
	}
	return llm.ProviderAnthropic
}

// ProviderConfig converts the LLM section for the provider registry
func (c Config) ProviderConfig() *llm.ProviderConfig {
	return &llm.ProviderConfig{
		Type:          llm.ProviderType(c.LLM.Provider),
		Endpoint:      c.LLM.Endpoint,
		Model:         c.LLM.Model,
		Token:         c.LLM.Token,
		Timeout:       c.LLM.Timeout,
		MaxTokens:     c.LLM.MaxTokens,
		MaxReplyBytes: c.LLM.MaxReplyBytes,
	}
}

// PolicyConfig converts the security and extraction sections
func (c Config) PolicyConfig() *security.PolicyConfig {
	return &security.PolicyConfig{
		FallbackPolicy:  c.Extraction.Fallback,
		BlockedPatterns: c.Security.BlockedPatterns,
		MaxSourceBytes:  c.Security.MaxSourceBytes,
	}
}
