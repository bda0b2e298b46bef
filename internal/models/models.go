// Package models holds the run-scoped model registry: context ceilings,
// priority-ordered selection and usage accounting.
package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/treedoc/internal/config"
)

// ErrNoModels is returned when a registry is built from an empty list.
var ErrNoModels = errors.New("models: registry needs at least one model")

// Usage is a point-in-time copy of one model's counters.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Succeeded    int
	Failed       int
	Total        int

	// Folder roll-ups are tracked apart from file calls.
	FolderSucceeded int
	FolderFailed    int
}

// Record is one model configuration plus its cumulative usage. The ceiling
// and prices are immutable; counters only grow and are safe for concurrent
// use.
type Record struct {
	ID              string
	MaxTokens       int
	InputCostPer1K  float64
	OutputCostPer1K float64

	mu    sync.Mutex
	usage Usage
}

// Fits reports whether a prompt needing need tokens fits strictly below
// the ceiling.
func (r *Record) Fits(need int) bool {
	return r.MaxTokens > need
}

// RecordSuccess accounts one settled file: both prompts succeeded.
func (r *Record) RecordSuccess(inputTokens, outputTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage.InputTokens += inputTokens
	r.usage.OutputTokens += outputTokens
	r.usage.Total++
	r.usage.Succeeded++
}

// RecordFailure accounts one failed file.
func (r *Record) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage.Failed++
}

// RecordFolder accounts one folder roll-up. Token counts are added only on
// success.
func (r *Record) RecordFolder(ok bool, inputTokens, outputTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		r.usage.FolderFailed++
		return
	}
	r.usage.InputTokens += inputTokens
	r.usage.OutputTokens += outputTokens
	r.usage.FolderSucceeded++
}

// Usage returns a copy of the counters.
func (r *Record) Usage() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// Cost returns the estimated spend in dollars for the given usage.
func (r *Record) Cost(u Usage) float64 {
	return float64(u.InputTokens)/1000*r.InputCostPer1K +
		float64(u.OutputTokens)/1000*r.OutputCostPer1K
}

// Registry is the ordered set of models available to a run. Order is
// priority: the first entry is the preferred (cheapest) model and the last
// is the largest-ceiling fallback.
type Registry struct {
	records []*Record
	byID    map[string]*Record
	largest *Record
}

// NewRegistry builds a registry in the given priority order.
func NewRegistry(cfgs []config.ModelConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoModels
	}
	reg := &Registry{
		records: make([]*Record, 0, len(cfgs)),
		byID:    make(map[string]*Record, len(cfgs)),
	}
	for _, c := range cfgs {
		if c.ID == "" || c.MaxTokens <= 0 {
			return nil, fmt.Errorf("models: invalid entry %q (max_tokens %d)", c.ID, c.MaxTokens)
		}
		if _, dup := reg.byID[c.ID]; dup {
			return nil, fmt.Errorf("models: duplicate id %q", c.ID)
		}
		r := &Record{
			ID:              c.ID,
			MaxTokens:       c.MaxTokens,
			InputCostPer1K:  c.InputCostPer1K,
			OutputCostPer1K: c.OutputCostPer1K,
		}
		reg.records = append(reg.records, r)
		reg.byID[c.ID] = r
		if reg.largest == nil || r.MaxTokens > reg.largest.MaxTokens {
			reg.largest = r
		}
	}
	return reg, nil
}

// Select returns the first model in priority order whose ceiling is
// strictly greater than need. ok is false when no model fits; that is a
// skip signal, not an error.
func (g *Registry) Select(need int) (rec *Record, ok bool) {
	for _, r := range g.records {
		if r.Fits(need) {
			return r, true
		}
	}
	return nil, false
}

// Largest returns the model with the highest ceiling. Ties go to the one
// listed first.
func (g *Registry) Largest() *Record {
	return g.largest
}

// Get looks a model up by id.
func (g *Registry) Get(id string) (*Record, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// Records returns the models in priority order.
func (g *Registry) Records() []*Record {
	return append([]*Record(nil), g.records...)
}

// Line is one row of a usage snapshot.
type Line struct {
	ID        string
	MaxTokens int
	Usage
	Cost float64
}

// Snapshot returns a copy of every model's counters in priority order plus
// the column totals.
func (g *Registry) Snapshot() (lines []Line, total Line) {
	total.ID = "Total"
	for _, r := range g.records {
		u := r.Usage()
		l := Line{ID: r.ID, MaxTokens: r.MaxTokens, Usage: u, Cost: r.Cost(u)}
		lines = append(lines, l)

		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.Succeeded += u.Succeeded
		total.Failed += u.Failed
		total.Total += u.Total
		total.FolderSucceeded += u.FolderSucceeded
		total.FolderFailed += u.FolderFailed
		total.Cost += l.Cost
	}
	return lines, total
}
