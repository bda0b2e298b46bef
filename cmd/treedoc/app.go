package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/treedoc/internal/config"
	"github.com/fyrsmithlabs/treedoc/internal/ignore"
	"github.com/fyrsmithlabs/treedoc/internal/invoker"
	"github.com/fyrsmithlabs/treedoc/internal/llm"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/orchestrator"
	"github.com/fyrsmithlabs/treedoc/internal/prompts"
	"github.com/fyrsmithlabs/treedoc/internal/report"
	"github.com/fyrsmithlabs/treedoc/internal/secrets"
	"github.com/fyrsmithlabs/treedoc/internal/status"
	"github.com/fyrsmithlabs/treedoc/internal/summarize"
	"github.com/fyrsmithlabs/treedoc/internal/telemetry"
	"github.com/fyrsmithlabs/treedoc/internal/tokens"
	"github.com/fyrsmithlabs/treedoc/internal/urls"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/treedoc"
	shutdownTimeout     = 5 * time.Second
)

// app holds the collaborators of one pipeline run.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	tel       *telemetry.Telemetry
	registry  *models.Registry
	tracker   *report.Tracker
	server    *status.Server
	executor  *orchestrator.Executor
	closeFunc []func(context.Context)
}

// runOptions select the client and sinks for a run.
type runOptions struct {
	dryRun bool
	stdout io.Writer
	stderr io.Writer

	// client overrides the configured backend, for tests.
	client llm.Client
}

func newApp(ctx context.Context, cfg *config.Config, opts runOptions) (*app, error) {
	a := &app{cfg: cfg, tracker: report.NewTracker()}
	if err := a.init(ctx, opts); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts runOptions) (err error) {
	cfg := a.cfg

	a.tel, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.onClose(func(ctx context.Context) { _ = a.tel.Shutdown(ctx) })

	lp := a.tel.LoggerProvider()
	logCfg, err := logging.FromSettings(cfg.Log.Level, cfg.Log.Format, lp != nil)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger, err = logging.NewLoggerTo(logCfg, lp, opts.stderr)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.onClose(func(context.Context) { _ = a.logger.Sync() })

	if h := a.tel.Health(); h.Enabled && !h.Healthy {
		a.logger.Warn(ctx, "telemetry degraded", zap.Strings("components", h.Degraded))
	}

	a.registry, err = models.NewRegistry(cfg.Models)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	inv := invoker.New(cfg.Pipeline.MaxConcurrentCalls,
		invoker.WithRate(cfg.Pipeline.RequestsPerSecond, cfg.Pipeline.Burst),
		invoker.WithMetrics(invoker.NewMetrics(promReg)),
	)

	client, err := a.newClient(opts)
	if err != nil {
		return err
	}

	est, err := tokens.NewOrApprox(cfg.Pipeline.Encoding)
	if err != nil {
		a.logger.Warn(ctx, "token encoding unavailable, using approximate counts",
			zap.String("encoding", cfg.Pipeline.Encoding), zap.Error(err))
	}

	scrubber, err := secrets.New(&secrets.Config{
		Enabled:   cfg.Secrets.Enabled,
		Redaction: cfg.Secrets.Redaction,
	})
	if err != nil {
		return fmt.Errorf("init secret scrubbing: %w", err)
	}

	matcher, err := ignore.Load(cfg.Project.InputRoot, cfg.Project.Ignore)
	if err != nil {
		return fmt.Errorf("load ignore rules: %w", err)
	}

	p := cfg.Project
	units, err := summarize.New(summarize.Options{
		ProjectName: p.Name,
		OutputRoot:  p.OutputRoot,
		Registry:    a.registry,
		Invoker:     inv,
		Client:      client,
		Prompts: prompts.New(prompts.Settings{
			ProjectName:    p.Name,
			ContentType:    p.ContentType,
			TargetAudience: p.TargetAudience,
			FilePrompt:     p.FilePrompt,
			FolderPrompt:   p.FolderPrompt,
		}),
		Estimator:             est,
		URLs:                  urls.New(p.RepositoryURL, p.Branch),
		Scrubber:              scrubber,
		Matcher:               matcher,
		Logger:                a.logger,
		Tracer:                a.tel.Tracer(instrumentationName),
		Meter:                 a.tel.Meter(instrumentationName),
		OutputTokensPerFile:   cfg.Pipeline.OutputTokensPerFile,
		OutputTokensPerFolder: cfg.Pipeline.OutputTokensPerFolder,
		MaxFileSize:           cfg.Pipeline.MaxFileSize,
		DryRun:                opts.dryRun,
		Incremental:           cfg.Pipeline.Incremental,
	})
	if err != nil {
		return err
	}

	title := "Usage"
	if opts.dryRun {
		title = "Estimated usage (dry run)"
	}
	a.executor, err = orchestrator.New(orchestrator.Config{
		InputRoot:     p.InputRoot,
		OutputRoot:    p.OutputRoot,
		Matcher:       matcher,
		FileWorkers:   cfg.Pipeline.FileWorkers,
		FolderWorkers: cfg.Pipeline.FolderWorkers,
		DryRun:        opts.dryRun,
	}, units, a.registry,
		orchestrator.WithReporter(&report.Usage{W: opts.stdout, Title: title}),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTracer(a.tel.Tracer(instrumentationName)),
	)
	if err != nil {
		return err
	}
	a.executor.OnProgress(report.Fanout(report.NewConsole(opts.stderr).Update, a.tracker.Update))

	if cfg.Status.Addr != "" {
		a.server, err = status.NewServer(status.Config{
			Addr:     cfg.Status.Addr,
			Progress: a.tracker,
			Usage:    a.registry,
			Health:   a.tel,
			Calls:    inv,
			Gatherer: promReg,
			Meter:    a.tel.Meter(instrumentationName),
		}, a.logger.Named("status"))
		if err != nil {
			return err
		}
		if err := a.server.Start(ctx); err != nil {
			return err
		}
		a.onClose(func(ctx context.Context) { _ = a.server.Shutdown(ctx) })
	}

	return nil
}

func (a *app) newClient(opts runOptions) (llm.Client, error) {
	if opts.client != nil {
		return opts.client, nil
	}
	if opts.dryRun {
		return llm.Offline{}, nil
	}
	client, err := llm.New(llm.Config{
		Provider:    a.cfg.LLM.Provider,
		APIKey:      a.cfg.LLM.APIKey.Value(),
		BaseURL:     a.cfg.LLM.BaseURL,
		Timeout:     a.cfg.LLM.Timeout.Duration(),
		MaxRetries:  a.cfg.LLM.MaxRetries,
		Temperature: a.cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return &llm.Instrumented{
		Inner:  client,
		Tracer: a.tel.Tracer(instrumentationName),
		Logger: a.logger.Named("llm"),
	}, nil
}

func (a *app) onClose(fn func(context.Context)) {
	a.closeFunc = append(a.closeFunc, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	for i := len(a.closeFunc) - 1; i >= 0; i-- {
		a.closeFunc[i](ctx)
	}
}

// run executes the pipeline.
func (a *app) run(ctx context.Context) (*orchestrator.Result, error) {
	return a.executor.Run(ctx)
}
