package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/treedoc/internal/ignore"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/summarize"
	"github.com/fyrsmithlabs/treedoc/internal/walk"
)

const (
	defaultFileWorkers   = 64
	defaultFolderWorkers = 16
)

// Units performs the per-file and per-folder work of a run.
// *summarize.Summarizer is the production implementation.
type Units interface {
	SummarizeFile(ctx context.Context, f walk.File) summarize.Outcome
	AggregateFolder(ctx context.Context, n *walk.Node) summarize.Outcome
}

// Config configures a run.
type Config struct {
	InputRoot  string
	OutputRoot string
	Matcher    ignore.Matcher

	FileWorkers   int
	FolderWorkers int

	// DryRun stops after the file pass; folders need real file artifacts.
	DryRun bool
}

// Option customizes an Executor.
type Option func(*Executor)

// WithReporter sets the sink for the final usage report.
func WithReporter(r Reporter) Option {
	return func(e *Executor) { e.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracer sets the tracer for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// Executor runs the phases of a documentation run.
type Executor struct {
	config           Config
	units            Units
	registry         *models.Registry
	reporter         Reporter
	logger           *logging.Logger
	tracer           trace.Tracer
	progressCallback ProgressCallback
}

// New creates an executor.
func New(cfg Config, units Units, registry *models.Registry, opts ...Option) (*Executor, error) {
	if units == nil {
		return nil, errors.New("orchestrator: units are required")
	}
	if registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}
	if cfg.InputRoot == "" || cfg.OutputRoot == "" {
		return nil, errors.New("orchestrator: input and output roots are required")
	}
	if cfg.Matcher == nil {
		cfg.Matcher = ignore.None{}
	}
	if cfg.FileWorkers <= 0 {
		cfg.FileWorkers = defaultFileWorkers
	}
	if cfg.FolderWorkers <= 0 {
		cfg.FolderWorkers = defaultFolderWorkers
	}

	e := &Executor{config: cfg, units: units, registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.Named("orchestrator")
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	return e, nil
}

// OnProgress sets the progress callback.
func (e *Executor) OnProgress(callback ProgressCallback) {
	e.progressCallback = callback
}

// Run executes every phase. It returns an error only when the input tree
// cannot be walked at all; once the passes have started the run always
// reaches the report.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	ctx = logging.WithRunID(ctx, res.RunID)
	ctx, span := e.tracer.Start(ctx, "treedoc.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
		attribute.String("input.root", e.config.InputRoot),
		attribute.Bool("dry_run", e.config.DryRun),
	))
	defer span.End()

	walker, err := walk.New(e.config.InputRoot, e.config.Matcher, e.config.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("input tree: %w", err)
	}

	e.logger.Info(ctx, "starting run",
		zap.String("input", walker.Root()), zap.String("output", e.config.OutputRoot), zap.Bool("dry_run", e.config.DryRun))

	res.Counts = e.countPass(ctx, res.RunID, walker)
	res.Files = e.filePass(ctx, res.RunID, walker, res.Counts.Files)
	res.Folders = e.folderPass(ctx, res.RunID)

	e.report(ctx, res)
	res.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.Int("files.produced", res.Files.Produced),
		attribute.Int("files.failed", res.Files.Failed),
		attribute.Int("folders.produced", res.Folders.Produced),
	)
	e.logger.Info(ctx, "run finished",
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
		zap.Int("files_produced", res.Files.Produced),
		zap.Int("files_skipped", res.Files.Skipped),
		zap.Int("files_failed", res.Files.Failed),
		zap.Int("files_reused", res.Files.Reused),
		zap.Int("folders_produced", res.Folders.Produced),
		zap.Int("folders_failed", res.Folders.Failed),
	)
	return res, nil
}

func (e *Executor) countPass(ctx context.Context, runID string, walker *walk.Walker) walk.Counts {
	e.reportProgress(Progress{RunID: runID, Phase: PhaseCount, Status: StatusInProgress, Message: "Counting files and folders"})

	counts, err := walker.Count(ctx)
	if err != nil {
		e.logger.Error(ctx, "counting pass failed", zap.Error(err))
	}
	e.reportProgress(Progress{
		RunID: runID, Phase: PhaseCount, Status: StatusCompleted,
		Message: fmt.Sprintf("Found %d files in %d folders", counts.Files, counts.Folders),
		Done:    counts.Files, Total: counts.Files, Percentage: 100,
	})
	return counts
}

// filePass summarizes every file and returns only once all have settled.
func (e *Executor) filePass(ctx context.Context, runID string, walker *walk.Walker, total int) Tally {
	e.reportProgress(Progress{RunID: runID, Phase: PhaseFiles, Status: StatusInProgress, Message: "Summarizing files", Total: total})

	var (
		mu    sync.Mutex
		tally Tally
	)
	var g errgroup.Group
	g.SetLimit(e.config.FileWorkers)

	walkErr := walker.Files(ctx, func(f walk.File) error {
		g.Go(func() error {
			o := e.units.SummarizeFile(ctx, f)

			mu.Lock()
			tally.add(o.Status)
			done := tally.Settled()
			mu.Unlock()

			e.reportProgress(unitProgress(runID, PhaseFiles, f.Rel, o, done, total))
			return nil
		})
		return nil
	})
	_ = g.Wait()
	if walkErr != nil {
		e.logger.Error(ctx, "file pass stopped early", zap.Error(walkErr))
	}

	e.reportProgress(Progress{
		RunID: runID, Phase: PhaseFiles, Status: StatusCompleted,
		Message: fmt.Sprintf("Files: %d produced, %d skipped, %d failed, %d reused",
			tally.Produced, tally.Skipped, tally.Failed, tally.Reused),
		Done: tally.Settled(), Total: total, Percentage: 100,
	})
	return tally
}

// folderPass aggregates the output tree bottom-up.
func (e *Executor) folderPass(ctx context.Context, runID string) Tally {
	var tally Tally
	if e.config.DryRun {
		e.reportProgress(Progress{RunID: runID, Phase: PhaseFolders, Status: StatusSkipped, Message: "Dry run: folders not summarized"})
		return tally
	}
	if _, err := os.Stat(e.config.OutputRoot); err != nil {
		e.logger.Info(ctx, "no output tree, skipping folder pass", zap.String("output", e.config.OutputRoot))
		e.reportProgress(Progress{RunID: runID, Phase: PhaseFolders, Status: StatusSkipped, Message: "Nothing to aggregate"})
		return tally
	}

	tree, err := walk.BuildTree(e.config.OutputRoot, e.config.Matcher)
	if err != nil {
		e.logger.Error(ctx, "reading output tree failed", zap.Error(err))
		return tally
	}
	total := tree.Len()
	e.reportProgress(Progress{RunID: runID, Phase: PhaseFolders, Status: StatusInProgress, Message: "Summarizing folders", Total: total})

	var mu sync.Mutex
	err = walk.PostOrder(ctx, tree, e.config.FolderWorkers, func(ctx context.Context, n *walk.Node) error {
		o := e.units.AggregateFolder(ctx, n)

		mu.Lock()
		tally.add(o.Status)
		done := tally.Settled()
		mu.Unlock()

		e.reportProgress(unitProgress(runID, PhaseFolders, n.Rel, o, done, total))
		return nil
	})
	if err != nil {
		e.logger.Error(ctx, "folder pass stopped early", zap.Error(err))
	}

	e.reportProgress(Progress{
		RunID: runID, Phase: PhaseFolders, Status: StatusCompleted,
		Message: fmt.Sprintf("Folders: %d produced, %d skipped, %d failed, %d reused",
			tally.Produced, tally.Skipped, tally.Failed, tally.Reused),
		Done: tally.Settled(), Total: total, Percentage: 100,
	})
	return tally
}

func (e *Executor) report(ctx context.Context, res *Result) {
	res.Usage, res.Total = e.registry.Snapshot()
	if e.reporter != nil {
		if err := e.reporter.Report(ctx, res.Usage, res.Total); err != nil {
			e.logger.Warn(ctx, "usage report failed", zap.Error(err))
		}
	}
	e.reportProgress(Progress{RunID: res.RunID, Phase: PhaseReport, Status: StatusCompleted, Message: "Run complete", Percentage: 100})
}

// reportProgress sends progress updates to the callback.
func (e *Executor) reportProgress(progress Progress) {
	if e.progressCallback != nil {
		e.progressCallback(progress)
	}
}

func unitProgress(runID string, phase Phase, rel string, o summarize.Outcome, done, total int) Progress {
	msg := fmt.Sprintf("%s %s", o.Status, rel)
	if o.Reason != "" {
		msg += " (" + o.Reason + ")"
	}
	return Progress{
		RunID: runID, Phase: phase, Status: StatusInProgress,
		Message: msg, Done: done, Total: total, Percentage: percentage(done, total),
	}
}

func percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}
