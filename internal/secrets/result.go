package secrets

import (
	"sort"
	"time"
)

// Result is the outcome of scrubbing one piece of content.
type Result struct {
	Scrubbed string        `json:"-"`
	Findings []Finding     `json:"findings,omitempty"`
	Duration time.Duration `json:"duration"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
}

// Finding is a detected secret. The secret itself is not kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"` // 1-based
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the matched rule IDs in sorted order.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
