// Package config provides configuration loading for treedoc.
//
// Values come from built-in defaults, an optional treedoc.yaml file and
// TREEDOC_* environment variables, in increasing order of precedence.
// Command-line flags are applied by the caller after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete treedoc configuration.
type Config struct {
	Project   ProjectConfig   `koanf:"project"`
	Models    []ModelConfig   `koanf:"models"`
	LLM       LLMConfig       `koanf:"llm"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Status    StatusConfig    `koanf:"status"`
	Secrets   SecretsConfig   `koanf:"secrets"`
}

// ProjectConfig describes the source tree being documented.
type ProjectConfig struct {
	Name           string   `koanf:"name"`
	RepositoryURL  string   `koanf:"repository_url"`
	Branch         string   `koanf:"branch"`
	InputRoot      string   `koanf:"input_root"`
	OutputRoot     string   `koanf:"output_root"`
	Ignore         []string `koanf:"ignore"`
	ContentType    string   `koanf:"content_type"`
	TargetAudience string   `koanf:"target_audience"`
	FilePrompt     string   `koanf:"file_prompt"`
	FolderPrompt   string   `koanf:"folder_prompt"`
}

// ModelConfig is one entry of the model registry. Order is priority order.
type ModelConfig struct {
	ID              string  `koanf:"id"`
	MaxTokens       int     `koanf:"max_tokens"`
	InputCostPer1K  float64 `koanf:"input_cost_per_1k"`
	OutputCostPer1K float64 `koanf:"output_cost_per_1k"`
}

// LLMConfig selects and configures the completion backend. BaseURL is
// honored by the openai provider only. Timeout bounds each completion call.
type LLMConfig struct {
	Provider    string   `koanf:"provider"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	MaxRetries  int      `koanf:"max_retries"`
	Temperature float64  `koanf:"temperature"`
}

// PipelineConfig tunes concurrency and accounting.
type PipelineConfig struct {
	MaxConcurrentCalls    int     `koanf:"max_concurrent_calls"`
	RequestsPerSecond     float64 `koanf:"requests_per_second"`
	Burst                 int     `koanf:"burst"`
	FileWorkers           int     `koanf:"file_workers"`
	FolderWorkers         int     `koanf:"folder_workers"`
	OutputTokensPerFile   int     `koanf:"output_tokens_per_file"`
	OutputTokensPerFolder int     `koanf:"output_tokens_per_folder"`
	Encoding              string  `koanf:"encoding"`
	MaxFileSize           int64   `koanf:"max_file_size"`
	Incremental           bool    `koanf:"incremental"`
}

// LogConfig is the user-facing subset of logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the user-facing subset of OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// StatusConfig controls the optional HTTP status server.
type StatusConfig struct {
	Addr string `koanf:"addr"`
}

// SecretsConfig controls scrubbing of file content before prompting.
type SecretsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Redaction string `koanf:"redaction"`
}

// DefaultModels is the registry used when the config file names none.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{ID: "gpt-3.5-turbo", MaxTokens: 3050, InputCostPer1K: 0.0015, OutputCostPer1K: 0.002},
		{ID: "gpt-4", MaxTokens: 8192, InputCostPer1K: 0.03, OutputCostPer1K: 0.06},
		{ID: "gpt-4-32k", MaxTokens: 32768, InputCostPer1K: 0.06, OutputCostPer1K: 0.12},
	}
}

// DefaultIgnore lists patterns skipped in every project.
func DefaultIgnore() []string {
	return []string{
		".*", "*.lock", "*.sum", "node_modules", "vendor", "dist", "build",
		"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.ico", "*.pdf",
		"*.zip", "*.gz", "*.tar", "*.exe", "*.bin", "*.so", "*.dylib",
		"*.woff", "*.woff2", "*.ttf", "*.mp3", "*.mp4", "*.min.js", "*.map",
	}
}

const (
	defaultFilePrompt = "Write a detailed technical explanation of what this code does. " +
		"Focus on the high-level purpose of the code and how it may be used in the larger project. " +
		"Include code examples where appropriate. Keep you response between 100 and 300 words. " +
		"DO NOT RETURN MORE THAN 300 WORDS."
	defaultFolderPrompt = "Write a technical explanation of what the code in this folder does " +
		"and how it might fit into the larger project or work with other parts of the project."
)

// Default returns the scalar defaults. Slices are filled by applyDefaults so
// a config file that lists models replaces the default registry rather than
// being merged into it.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			InputRoot:      ".",
			OutputRoot:     filepath.Join(".treedoc", "docs", "json"),
			ContentType:    "code",
			TargetAudience: "smart developer",
			FilePrompt:     defaultFilePrompt,
			FolderPrompt:   defaultFolderPrompt,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     Duration(2 * time.Minute),
			MaxRetries:  2,
			Temperature: 0.1,
		},
		Pipeline: PipelineConfig{
			MaxConcurrentCalls:    25,
			Burst:                 1,
			FileWorkers:           64,
			FolderWorkers:         16,
			OutputTokensPerFile:   1000,
			OutputTokensPerFolder: 1000,
			Encoding:              "cl100k_base",
			MaxFileSize:           1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Secrets: SecretsConfig{
			Enabled:   true,
			Redaction: "[REDACTED]",
		},
	}
}

// applyDefaults fills values that depend on other values or on the
// environment outside the TREEDOC_ namespace.
func applyDefaults(cfg *Config) {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.Project.Ignore == nil {
		cfg.Project.Ignore = DefaultIgnore()
	}
}

// resolveAPIKey falls back to the provider's conventional environment
// variable. It runs after flags so --provider picks the right one.
func (c *Config) resolveAPIKey() {
	if c.LLM.APIKey.IsSet() {
		return
	}
	switch c.LLM.Provider {
	case "anthropic":
		c.LLM.APIKey = Secret(getEnvString("ANTHROPIC_API_KEY", ""))
	default:
		c.LLM.APIKey = Secret(getEnvString("OPENAI_API_KEY", ""))
	}
}

// Finalize resolves paths and derived names once flags have been applied.
// It is safe to call more than once.
func (c *Config) Finalize() error {
	in, err := filepath.Abs(c.Project.InputRoot)
	if err != nil {
		return fmt.Errorf("resolve input root: %w", err)
	}
	c.Project.InputRoot = in

	out := c.Project.OutputRoot
	if !filepath.IsAbs(out) {
		out = filepath.Join(in, out)
	}
	c.Project.OutputRoot = filepath.Clean(out)

	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(in)
	}
	c.resolveAPIKey()
	return c.Validate()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("%w: at least one model is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("%w: models[%d]: id is required", ErrInvalidConfig, i)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: models[%d]: duplicate id %q", ErrInvalidConfig, i, m.ID)
		}
		seen[m.ID] = true
		if m.MaxTokens <= 0 {
			return fmt.Errorf("%w: model %q: max_tokens must be positive", ErrInvalidConfig, m.ID)
		}
		if m.InputCostPer1K < 0 || m.OutputCostPer1K < 0 {
			return fmt.Errorf("%w: model %q: prices cannot be negative", ErrInvalidConfig, m.ID)
		}
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("%w: llm.provider must be 'openai' or 'anthropic', got %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.BaseURL != "" {
		return fmt.Errorf("%w: llm.base_url is only supported by the openai provider", ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm.max_retries cannot be negative", ErrInvalidConfig)
	}

	p := c.Pipeline
	if p.MaxConcurrentCalls < 1 {
		return fmt.Errorf("%w: pipeline.max_concurrent_calls must be >= 1, got %d", ErrInvalidConfig, p.MaxConcurrentCalls)
	}
	if p.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: pipeline.requests_per_second cannot be negative", ErrInvalidConfig)
	}
	if p.FileWorkers < 1 || p.FolderWorkers < 1 {
		return fmt.Errorf("%w: pipeline workers must be >= 1", ErrInvalidConfig)
	}
	if p.OutputTokensPerFile < 0 || p.OutputTokensPerFolder < 0 {
		return fmt.Errorf("%w: nominal output tokens cannot be negative", ErrInvalidConfig)
	}
	if p.MaxFileSize <= 0 {
		return fmt.Errorf("%w: pipeline.max_file_size must be positive", ErrInvalidConfig)
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("%w: log.format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("%w: telemetry.protocol must be 'grpc' or 'http/protobuf'", ErrInvalidConfig)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("%w: telemetry.sample_rate must be within [0,1]", ErrInvalidConfig)
		}
	}

	if c.Project.InputRoot != "" && c.Project.OutputRoot != "" &&
		filepath.Clean(c.Project.InputRoot) == filepath.Clean(c.Project.OutputRoot) {
		return fmt.Errorf("%w: output root must differ from input root", ErrInvalidConfig)
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
