package summarize

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/treedoc/internal/artifact"
	"github.com/fyrsmithlabs/treedoc/internal/invoker"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/walk"
)

// SummarizeFile documents one source file.
//
// The summary and question prompts are estimated first; the file is skipped
// without side effects when no model can take the larger of the two.
// Otherwise both prompts go through the invoker concurrently and, once both
// have answered, the artifact is written and the model is charged.
func (s *Summarizer) SummarizeFile(ctx context.Context, f walk.File) Outcome {
	ctx = logging.WithUnit(ctx, "file", f.Rel)
	ctx, span := s.tracer.Start(ctx, "treedoc.file", trace.WithAttributes(
		attribute.String("file.path", f.Rel),
		attribute.Int64("file.size", f.Size),
	))
	defer span.End()

	start := time.Now()
	o := s.summarizeFile(ctx, f)
	s.metrics.record(ctx, "file", o, start)

	span.SetAttributes(attribute.String("outcome", o.Status.String()))
	if o.Model != "" {
		span.SetAttributes(attribute.String("llm.model", o.Model), attribute.Int("tokens.need", o.Need))
	}
	if o.Status == Failed {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, o.Reason)
	}
	return o
}

func (s *Summarizer) summarizeFile(ctx context.Context, f walk.File) Outcome {
	if s.opts.MaxFileSize > 0 && f.Size > s.opts.MaxFileSize {
		s.logger.Info(ctx, "skipping file: too large",
			zap.String("path", f.Rel), zap.Int64("size", f.Size), zap.Int64("max_size", s.opts.MaxFileSize))
		return skipped("file too large", 0)
	}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		s.logger.Error(ctx, "reading file failed", zap.String("path", f.Rel), zap.Error(err))
		return failed("read", err)
	}

	outPath := artifact.FilePath(s.opts.OutputRoot, f.Rel)
	checksum := artifact.Checksum(content)
	if s.opts.Incremental && !s.opts.DryRun {
		if prev, err := artifact.ReadFile(outPath); err == nil && prev.Checksum == checksum {
			s.logger.Debug(ctx, "file unchanged, keeping artifact", zap.String("path", f.Rel))
			return reused(outPath)
		}
	}

	text := string(content)
	if s.opts.Scrubber.IsEnabled() {
		res := s.opts.Scrubber.Scrub(text)
		if res.HasFindings() {
			s.logger.Warn(ctx, "redacted secrets from file content",
				zap.String("path", f.Rel), zap.Strings("rules", res.RuleIDs()), zap.Int("findings", len(res.Findings)))
		}
		text = res.Scrubbed
	}

	summaryPrompt, err := s.opts.Prompts.FileSummary(f.Rel, text)
	if err != nil {
		s.logger.Error(ctx, "building summary prompt failed", zap.String("path", f.Rel), zap.Error(err))
		return failed("prompt", err)
	}
	questionPrompt, err := s.opts.Prompts.FileQuestions(f.Rel, text)
	if err != nil {
		s.logger.Error(ctx, "building questions prompt failed", zap.String("path", f.Rel), zap.Error(err))
		return failed("prompt", err)
	}

	summaryTokens := s.opts.Estimator.Count(summaryPrompt)
	questionTokens := s.opts.Estimator.Count(questionPrompt)
	need := max(summaryTokens, questionTokens)

	rec, ok := s.opts.Registry.Select(need)
	if !ok {
		s.logger.Info(ctx, "skipping file: no model fits the prompt",
			zap.String("path", f.Rel), zap.Int("need", need))
		return skipped("over budget", need)
	}

	if s.opts.DryRun {
		rec.RecordSuccess(summaryTokens+questionTokens, s.opts.OutputTokensPerFile)
		s.logger.Debug(ctx, "estimated file", zap.String("path", f.Rel), zap.String("model", rec.ID), zap.Int("need", need))
		return Outcome{Status: Produced, Reason: "dry run", Model: rec.ID, Need: need}
	}

	var summary, questions string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = invoker.Run(gctx, s.opts.Invoker, func(ctx context.Context) (string, error) {
			return s.opts.Client.Complete(ctx, rec.ID, summaryPrompt)
		})
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		questions, err = invoker.Run(gctx, s.opts.Invoker, func(ctx context.Context) (string, error) {
			return s.opts.Client.Complete(ctx, rec.ID, questionPrompt)
		})
		if err != nil {
			return fmt.Errorf("questions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		rec.RecordFailure()
		s.logger.Error(ctx, "summarizing file failed",
			zap.String("path", f.Rel), zap.String("model", rec.ID), zap.Error(err))
		o := failed("invocation", err)
		o.Model, o.Need = rec.ID, need
		return o
	}

	doc := &artifact.FileSummary{
		FileName:  f.Name,
		FilePath:  f.Rel,
		URL:       s.opts.URLs.File(f.Rel),
		Summary:   summary,
		Questions: questions,
		Checksum:  checksum,
	}
	if err := artifact.WriteFile(outPath, doc); err != nil {
		rec.RecordFailure()
		s.logger.Error(ctx, "writing file summary failed", zap.String("path", f.Rel), zap.Error(err))
		o := failed("write", err)
		o.Model, o.Need = rec.ID, need
		return o
	}

	rec.RecordSuccess(summaryTokens+questionTokens, s.opts.OutputTokensPerFile)
	s.logger.Info(ctx, "documented file",
		zap.String("file", f.Name), zap.String("output", outPath), zap.String("model", rec.ID))
	if summary == "" {
		s.logger.Debug(ctx, "model returned an empty summary", zap.String("path", f.Rel))
	}
	return produced(rec.ID, need, outPath)
}
