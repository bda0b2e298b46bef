package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Scrubber redacts secrets from source text before it leaves the machine.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

// gitleaksScrubber uses the default gitleaks rule set.
type gitleaksScrubber struct {
	config *Config

	mu       sync.Mutex
	detector *detect.Detector
}

// New creates a Scrubber. A disabled config yields a pass-through scrubber
// without loading the gitleaks rules.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return Disabled{}, nil
	}

	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("load gitleaks rules: %w", err)
	}
	return &gitleaksScrubber{config: cfg, detector: detector}, nil
}

func (s *gitleaksScrubber) IsEnabled() bool { return true }

// Scrub replaces every detected secret with the configured redaction.
func (s *gitleaksScrubber) Scrub(content string) *Result {
	start := time.Now()

	s.mu.Lock()
	found := s.detector.DetectString(content)
	s.mu.Unlock()

	res := &Result{Scrubbed: content, ByRule: make(map[string]int)}
	secrets := make([]string, 0, len(found))
	for _, f := range found {
		if f.Secret == "" || s.config.allowed(f.Secret) {
			continue
		}
		secrets = append(secrets, f.Secret)
		res.Findings = append(res.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine + 1,
		})
		res.ByRule[f.RuleID]++
	}

	// Longest first so a secret that contains another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		res.Scrubbed = strings.ReplaceAll(res.Scrubbed, secret, s.config.Redaction)
	}

	res.Duration = time.Since(start)
	return res
}

// Disabled passes content through unchanged.
type Disabled struct{}

func (Disabled) Scrub(content string) *Result { return &Result{Scrubbed: content} }

func (Disabled) IsEnabled() bool { return false }
