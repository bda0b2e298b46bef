// Package telemetry provides OpenTelemetry tracing and metrics for treedoc runs.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string // "grpc" or "http/protobuf"
	ServiceName    string
	ServiceVersion string
	Insecure       bool
	TLSSkipVerify  bool
	SampleRate     float64
	Metrics        MetricsConfig
	ShutdownAfter  config.Duration
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool
	ExportInterval config.Duration
}

// NewDefaultConfig returns disabled telemetry pointed at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "treedoc",
		ServiceVersion: "dev",
		Insecure:       true,
		SampleRate:     1.0,
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		ShutdownAfter: config.Duration(5 * time.Second),
	}
}

// FromSettings maps the telemetry section of the treedoc config.
func FromSettings(s config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = s.Enabled
	if s.Endpoint != "" {
		cfg.Endpoint = s.Endpoint
	}
	if s.Protocol != "" {
		cfg.Protocol = s.Protocol
	}
	cfg.Insecure = s.Insecure
	cfg.SampleRate = s.SampleRate
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
		return fmt.Errorf("protocol must be 'grpc' or 'http/protobuf', got %q", c.Protocol)
	}
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; use TLS or a local endpoint")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %f", c.SampleRate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics export interval must be positive")
	}
	if c.ShutdownAfter.Duration() <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	switch {
	case strings.HasPrefix(host, "["):
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	case strings.Count(host, ":") == 1:
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
