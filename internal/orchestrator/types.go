package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/summarize"
	"github.com/fyrsmithlabs/treedoc/internal/walk"
)

// Phase is one step of a run.
type Phase string

const (
	// PhaseCount sizes the work without side effects.
	PhaseCount Phase = "count"

	// PhaseFiles summarizes every source file.
	PhaseFiles Phase = "files"

	// PhaseFolders rolls folders up, children first.
	PhaseFolders Phase = "folders"

	// PhaseReport emits the usage report.
	PhaseReport Phase = "report"
)

// AllPhases returns all phases in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseCount, PhaseFiles, PhaseFolders, PhaseReport}
}

// PhaseStatus is the state of a phase or of one unit inside it.
type PhaseStatus string

const (
	StatusInProgress PhaseStatus = "in_progress"
	StatusCompleted  PhaseStatus = "completed"
	StatusSkipped    PhaseStatus = "skipped"
)

// Progress is one update sent to the progress callback.
type Progress struct {
	RunID      string      `json:"run_id"`
	Phase      Phase       `json:"phase"`
	Status     PhaseStatus `json:"status"`
	Message    string      `json:"message"`
	Done       int         `json:"done"`
	Total      int         `json:"total"`
	Percentage int         `json:"percentage"`
}

// ProgressCallback receives progress updates. It is called from worker
// goroutines and must be safe for concurrent use.
type ProgressCallback func(progress Progress)

// Reporter receives the final usage table. Errors are logged and otherwise
// ignored.
type Reporter interface {
	Report(ctx context.Context, lines []models.Line, total models.Line) error
}

// Tally counts unit outcomes of one pass.
type Tally struct {
	Produced int `json:"produced"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Reused   int `json:"reused"`
}

func (t *Tally) add(s summarize.Status) {
	switch s {
	case summarize.Produced:
		t.Produced++
	case summarize.Skipped:
		t.Skipped++
	case summarize.Failed:
		t.Failed++
	case summarize.Reused:
		t.Reused++
	}
}

// Settled is the number of units that finished, whatever their outcome.
func (t Tally) Settled() int {
	return t.Produced + t.Skipped + t.Failed + t.Reused
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Counts     walk.Counts
	Files      Tally
	Folders    Tally
	Usage      []models.Line
	Total      models.Line
	StartedAt  time.Time
	FinishedAt time.Time
}
