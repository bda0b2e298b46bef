// Package orchestrator drives a documentation run.
//
// # Phases
//
// A run always moves through the same phases, in this order:
//
//	Count → Files → Folders → Report
//
// Count walks the input tree twice in parallel (files and folders) to size
// the progress display. Files summarizes every non-ignored source file on a
// bounded worker pool and waits until every file has settled. Folders walks
// the output tree in post-order: a folder is aggregated only after each of
// its sub-folders has been, and siblings run concurrently. Report hands the
// final per-model usage to the Reporter.
//
// # Failure policy
//
// Individual files and folders settle into summarize.Outcome values and never
// stop the run. Walk errors are logged and end the affected pass early. The
// report is emitted in every case once the run has started.
//
// # Usage
//
//	orch, err := orchestrator.New(orchestrator.Config{
//	    InputRoot:  cfg.Project.InputRoot,
//	    OutputRoot: cfg.Project.OutputRoot,
//	    Matcher:    rules,
//	}, summarizer, registry, orchestrator.WithReporter(r))
//	orch.OnProgress(tracker.Update)
//	result, err := orch.Run(ctx)
package orchestrator
