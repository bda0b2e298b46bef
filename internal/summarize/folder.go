package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/treedoc/internal/artifact"
	"github.com/fyrsmithlabs/treedoc/internal/invoker"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/prompts"
	"github.com/fyrsmithlabs/treedoc/internal/walk"
)

// Evidence is what a folder roll-up is built from: the documented files
// directly inside the folder and the summaries of its direct sub-folders,
// both in directory-listing order.
type Evidence struct {
	Files   []artifact.FileSummary   `json:"files"`
	Folders []artifact.FolderSummary `json:"folders"`
}

// Checksum identifies the evidence, so an unchanged folder can be reused.
func (e Evidence) Checksum() string {
	data, _ := json.Marshal(e)
	return artifact.Checksum(data)
}

// Empty reports whether there is nothing to summarize.
func (e Evidence) Empty() bool {
	return len(e.Files) == 0 && len(e.Folders) == 0
}

// CollectEvidence reads the artifacts inside the output directory dir, whose
// path relative to the output root is rel. Empty file artifacts are left
// out; an unreadable or missing sub-folder summary is logged and left out.
func (s *Summarizer) CollectEvidence(ctx context.Context, dir, rel string) (Evidence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Evidence{}, fmt.Errorf("list %s: %w", rel, err)
	}

	var ev Evidence
	for _, e := range entries {
		name := e.Name()
		if name == artifact.FolderFileName {
			continue
		}
		childRel := name
		if rel != "." && rel != "" {
			childRel = path.Join(rel, name)
		}
		childPath := filepath.Join(dir, name)

		switch {
		case e.IsDir():
			if s.opts.Matcher.Match(childRel, true) {
				continue
			}
			sub, err := artifact.ReadFolder(childPath)
			if err != nil {
				s.logger.Warn(ctx, "skipping sub-folder without summary",
					zap.String("folder", childRel), zap.Error(err))
				continue
			}
			ev.Folders = append(ev.Folders, sub.Shallow())

		case e.Type().IsRegular() && strings.HasSuffix(name, ".json"):
			doc, err := artifact.ReadFile(childPath)
			if err != nil {
				if !errors.Is(err, artifact.ErrEmpty) {
					s.logger.Warn(ctx, "skipping unreadable file summary",
						zap.String("artifact", childRel), zap.Error(err))
				}
				continue
			}
			ev.Files = append(ev.Files, *doc)
		}
	}
	return ev, nil
}

// AggregateFolder rolls up one directory of the output tree. It must run
// only after every sub-directory of n has been aggregated.
func (s *Summarizer) AggregateFolder(ctx context.Context, n *walk.Node) Outcome {
	ctx = logging.WithUnit(ctx, "folder", n.Rel)
	ctx, span := s.tracer.Start(ctx, "treedoc.folder", trace.WithAttributes(
		attribute.String("folder.path", n.Rel),
		attribute.Int("folder.children", len(n.Children)),
	))
	defer span.End()

	start := time.Now()
	o := s.aggregateFolder(ctx, n)
	s.metrics.record(ctx, "folder", o, start)

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

func (s *Summarizer) aggregateFolder(ctx context.Context, n *walk.Node) Outcome {
	ev, err := s.CollectEvidence(ctx, n.Path, n.Rel)
	if err != nil {
		s.logger.Error(ctx, "reading folder failed", zap.String("folder", n.Rel), zap.Error(err))
		return failed("read", err)
	}
	if ev.Empty() {
		s.logger.Info(ctx, "skipping folder: nothing documented inside", zap.String("folder", n.Rel))
		return skipped("no evidence", 0)
	}

	checksum := ev.Checksum()
	if s.opts.Incremental {
		if prev, err := artifact.ReadFolder(n.Path); err == nil && prev.Checksum == checksum && prev.Summary != "" {
			s.logger.Debug(ctx, "folder unchanged, keeping summary", zap.String("folder", n.Rel))
			return reused(artifact.FolderPath(n.Path))
		}
	}

	name := n.Name
	if n.Parent == nil && s.opts.ProjectName != "" {
		name = s.opts.ProjectName
	}

	prompt, err := s.opts.Prompts.FolderSummary(n.Rel, entriesOfFiles(ev.Files), entriesOfFolders(ev.Folders))
	if err != nil {
		s.logger.Error(ctx, "building folder prompt failed", zap.String("folder", n.Rel), zap.Error(err))
		return failed("prompt", err)
	}

	rec := s.opts.Registry.Largest()
	need := s.opts.Estimator.Count(prompt)
	if !rec.Fits(need) {
		s.logger.Warn(ctx, "skipping folder: prompt exceeds the largest model",
			zap.String("folder", n.Rel), zap.String("model", rec.ID), zap.Int("need", need))
		return skipped("over budget", need)
	}

	summary, err := invoker.Run(ctx, s.opts.Invoker, func(ctx context.Context) (string, error) {
		return s.opts.Client.Complete(ctx, rec.ID, prompt)
	})
	if err != nil {
		rec.RecordFolder(false, 0, 0)
		s.logger.Error(ctx, "summarizing folder failed",
			zap.String("folder", n.Rel), zap.String("model", rec.ID), zap.Error(err))
		o := failed("invocation", err)
		o.Model, o.Need = rec.ID, need
		return o
	}

	doc := &artifact.FolderSummary{
		FolderName: name,
		FolderPath: n.Rel,
		URL:        s.opts.URLs.Folder(n.Rel),
		Files:      ev.Files,
		Folders:    ev.Folders,
		Summary:    summary,
		Checksum:   checksum,
	}
	if err := artifact.WriteFolder(n.Path, doc); err != nil {
		rec.RecordFolder(false, 0, 0)
		s.logger.Error(ctx, "writing folder summary failed", zap.String("folder", n.Rel), zap.Error(err))
		o := failed("write", err)
		o.Model, o.Need = rec.ID, need
		return o
	}

	rec.RecordFolder(true, need, s.opts.OutputTokensPerFolder)
	out := artifact.FolderPath(n.Path)
	s.logger.Info(ctx, "documented folder",
		zap.String("folder", name), zap.String("output", out), zap.String("model", rec.ID))
	return produced(rec.ID, need, out)
}

func entriesOfFiles(files []artifact.FileSummary) []prompts.Entry {
	out := make([]prompts.Entry, len(files))
	for i, f := range files {
		out[i] = prompts.Entry{Name: f.FileName, Summary: f.Summary}
	}
	return out
}

func entriesOfFolders(folders []artifact.FolderSummary) []prompts.Entry {
	out := make([]prompts.Entry, len(folders))
	for i, f := range folders {
		out[i] = prompts.Entry{Name: f.FolderName, Summary: f.Summary}
	}
	return out
}
