package secrets

import (
	"fmt"
	"regexp"
)

// Config configures the scrubber.
type Config struct {
	Enabled bool

	// Redaction replaces each detected secret. Default "[REDACTED]".
	Redaction string

	// AllowList holds regexps; a detected secret matching one is kept.
	AllowList []string

	allow []*regexp.Regexp
}

// DefaultConfig returns an enabled scrubber config.
func DefaultConfig() *Config {
	return &Config{Enabled: true, Redaction: "[REDACTED]"}
}

// Validate compiles the allow list.
func (c *Config) Validate() error {
	if c.Redaction == "" {
		c.Redaction = "[REDACTED]"
	}
	c.allow = c.allow[:0]
	for _, p := range c.AllowList {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid allow list pattern %q: %w", p, err)
		}
		c.allow = append(c.allow, re)
	}
	return nil
}

func (c *Config) allowed(secret string) bool {
	for _, re := range c.allow {
		if re.MatchString(secret) {
			return true
		}
	}
	return false
}
