package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/orchestrator"
)

// Console prints phase transitions as they happen. Per-unit updates are
// left to the log.
type Console struct {
	W io.Writer

	mu      sync.Mutex
	started map[orchestrator.Phase]time.Time
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{W: w, started: make(map[orchestrator.Phase]time.Time)}
}

// Update implements orchestrator.ProgressCallback. Write errors are ignored.
func (c *Console) Update(p orchestrator.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch p.Status {
	case orchestrator.StatusInProgress:
		if _, seen := c.started[p.Phase]; seen {
			return
		}
		c.started[p.Phase] = time.Now()
		fmt.Fprintf(c.W, "%s %s\n", warnStyle.Render("●"), p.Message)
	case orchestrator.StatusCompleted:
		elapsed := ""
		if t, ok := c.started[p.Phase]; ok {
			elapsed = dimStyle.Render(fmt.Sprintf(" (%s)", time.Since(t).Round(time.Millisecond)))
		}
		fmt.Fprintf(c.W, "%s %s%s\n", successStyle.Render("✓"), p.Message, elapsed)
	case orchestrator.StatusSkipped:
		fmt.Fprintf(c.W, "%s %s\n", dimStyle.Render("-"), dimStyle.Render(p.Message))
	}
}

// Snapshot is the latest known state of a run.
type Snapshot struct {
	RunID      string             `json:"run_id"`
	Phase      orchestrator.Phase `json:"phase"`
	Message    string             `json:"message"`
	Done       int                `json:"done"`
	Total      int                `json:"total"`
	Percentage int                `json:"percentage"`
	Finished   bool               `json:"finished"`
	StartedAt  time.Time          `json:"started_at"`
	UpdatedAt  time.Time          `json:"updated_at"`

	// Phases maps each phase to its last status.
	Phases map[orchestrator.Phase]orchestrator.PhaseStatus `json:"phases"`
}

// Tracker keeps the latest progress for the status server.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{Phases: make(map[orchestrator.Phase]orchestrator.PhaseStatus)},
		now:  time.Now,
	}
}

// Update implements orchestrator.ProgressCallback.
func (t *Tracker) Update(p orchestrator.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.snap.StartedAt.IsZero() {
		t.snap.StartedAt = now
	}
	t.snap.RunID = p.RunID
	t.snap.Phase = p.Phase
	t.snap.Message = p.Message
	t.snap.Done = p.Done
	t.snap.Total = p.Total
	t.snap.Percentage = p.Percentage
	t.snap.UpdatedAt = now
	t.snap.Phases[p.Phase] = p.Status
	if p.Phase == orchestrator.PhaseReport && p.Status == orchestrator.StatusCompleted {
		t.snap.Finished = true
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.snap
	out.Phases = make(map[orchestrator.Phase]orchestrator.PhaseStatus, len(t.snap.Phases))
	for k, v := range t.snap.Phases {
		out.Phases[k] = v
	}
	return out
}

// Fanout calls every callback in order.
func Fanout(cbs ...orchestrator.ProgressCallback) orchestrator.ProgressCallback {
	return func(p orchestrator.Progress) {
		for _, cb := range cbs {
			if cb != nil {
				cb(p)
			}
		}
	}
}
