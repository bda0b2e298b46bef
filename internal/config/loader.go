package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix namespaces environment overrides.
	EnvPrefix = "TREEDOC_"

	// DefaultFileName is looked up in the working directory when no path is given.
	DefaultFileName = "treedoc.yaml"
)

// Load builds the configuration from defaults, the YAML file at path and
// TREEDOC_* environment variables. The result is not validated; callers
// layer flags on top and then call Finalize.
//
// An empty path means DefaultFileName in the working directory, which may
// be absent. An explicit path must exist.
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix:
//
//	TREEDOC_PIPELINE_MAX_CONCURRENT_CALLS -> pipeline.max_concurrent_calls
//	TREEDOC_LLM_API_KEY                   -> llm.api_key
//	TREEDOC_PROJECT_OUTPUT_ROOT           -> project.output_root
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// envKey maps TREEDOC_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens path once and checks it through the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return io.ReadAll(io.LimitReader(f, maxConfigFileSize))
}
