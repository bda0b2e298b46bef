// Package summarize turns files and folders into documentation artifacts.
//
// SummarizeFile and AggregateFolder are independent units of work: each
// settles into an Outcome, logs what happened and never returns an error to
// its caller, so one failing unit cannot stop its siblings.
package summarize

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fyrsmithlabs/treedoc/internal/ignore"
	"github.com/fyrsmithlabs/treedoc/internal/invoker"
	"github.com/fyrsmithlabs/treedoc/internal/llm"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/prompts"
	"github.com/fyrsmithlabs/treedoc/internal/secrets"
	"github.com/fyrsmithlabs/treedoc/internal/tokens"
	"github.com/fyrsmithlabs/treedoc/internal/urls"
)

const (
	defaultOutputTokensPerFile   = 1000
	defaultOutputTokensPerFolder = 1000
)

// Options wires a Summarizer. Registry, Invoker, Client, Prompts and
// Estimator are required.
type Options struct {
	ProjectName string
	OutputRoot  string

	Registry  *models.Registry
	Invoker   *invoker.Invoker
	Client    llm.Client
	Prompts   prompts.Builder
	Estimator tokens.Estimator

	URLs     urls.Builder     // default: no links
	Scrubber secrets.Scrubber // default: no scrubbing
	Matcher  ignore.Matcher   // filters output directory entries; default: none

	Logger *logging.Logger
	Tracer trace.Tracer
	Meter  metric.Meter

	// Nominal output tokens booked per settled unit.
	OutputTokensPerFile   int
	OutputTokensPerFolder int

	MaxFileSize int64 // 0 disables the limit
	DryRun      bool
	Incremental bool
}

// Summarizer runs the per-file and per-folder units of a pipeline run.
type Summarizer struct {
	opts    Options
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *unitMetrics
}

// New validates opts and fills in defaults.
func New(opts Options) (*Summarizer, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("summarize: registry is required")
	case opts.Invoker == nil:
		return nil, errors.New("summarize: invoker is required")
	case opts.Client == nil:
		return nil, errors.New("summarize: llm client is required")
	case opts.Prompts == nil:
		return nil, errors.New("summarize: prompt builder is required")
	case opts.Estimator == nil:
		return nil, errors.New("summarize: token estimator is required")
	case opts.OutputRoot == "":
		return nil, errors.New("summarize: output root is required")
	}

	if opts.URLs == nil {
		opts.URLs = urls.None{}
	}
	if opts.Scrubber == nil {
		opts.Scrubber = secrets.Disabled{}
	}
	if opts.Matcher == nil {
		opts.Matcher = ignore.None{}
	}
	if opts.OutputTokensPerFile <= 0 {
		opts.OutputTokensPerFile = defaultOutputTokensPerFile
	}
	if opts.OutputTokensPerFolder <= 0 {
		opts.OutputTokensPerFolder = defaultOutputTokensPerFolder
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}

	return &Summarizer{
		opts:    opts,
		logger:  logger.Named("summarize"),
		tracer:  tracer,
		metrics: newUnitMetrics(opts.Meter, logger),
	}, nil
}
