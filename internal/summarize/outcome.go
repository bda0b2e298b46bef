package summarize

// Status tags how one unit of work settled.
type Status int

const (
	// Produced means an artifact was written.
	Produced Status = iota
	// Skipped means the unit was deliberately not attempted.
	Skipped
	// Failed means an attempt was made and nothing was written.
	Failed
	// Reused means an up-to-date artifact from an earlier run was kept.
	Reused
)

func (s Status) String() string {
	switch s {
	case Produced:
		return "produced"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Reused:
		return "reused"
	default:
		return "unknown"
	}
}

// Outcome is the result of summarizing one file or aggregating one folder.
type Outcome struct {
	Status Status
	Reason string
	Err    error

	Model  string // model used, if any
	Need   int    // prompt tokens the model had to fit
	Output string // artifact path, for Produced and Reused
}

func produced(model string, need int, output string) Outcome {
	return Outcome{Status: Produced, Model: model, Need: need, Output: output}
}

func skipped(reason string, need int) Outcome {
	return Outcome{Status: Skipped, Reason: reason, Need: need}
}

func failed(reason string, err error) Outcome {
	return Outcome{Status: Failed, Reason: reason, Err: err}
}

func reused(output string) Outcome {
	return Outcome{Status: Reused, Reason: "unchanged", Output: output}
}
