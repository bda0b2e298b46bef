// Package logging provides structured logging for treedoc runs.
//
// The Logger wraps Zap with:
//   - a Trace level (-2, below Debug) for prompt and response bodies
//   - console or JSON output on stderr, plus an optional OpenTelemetry bridge
//   - context fields for the run ID, the unit being processed and trace IDs
//   - encoder-level redaction of secret-looking keys and values
//
// Typical use:
//
//	cfg, err := logging.FromSettings("info", "console", false)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithUnit(ctx, "file", "pkg/a.go")
//	logger.Info(ctx, "file summarized", zap.String("model", "gpt-4"))
//
// Tests use NewTestLogger, which records entries in memory:
//
//	tl := logging.NewTestLogger()
//	tl.AssertLogged(t, zapcore.WarnLevel, "skipping file")
package logging
