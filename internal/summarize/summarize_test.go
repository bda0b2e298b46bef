package summarize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/treedoc/internal/artifact"
	"github.com/fyrsmithlabs/treedoc/internal/config"
	"github.com/fyrsmithlabs/treedoc/internal/invoker"
	"github.com/fyrsmithlabs/treedoc/internal/llm"
	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/prompts"
	"github.com/fyrsmithlabs/treedoc/internal/secrets"
	"github.com/fyrsmithlabs/treedoc/internal/telemetry"
	"github.com/fyrsmithlabs/treedoc/internal/tokens"
	"github.com/fyrsmithlabs/treedoc/internal/urls"
	"github.com/fyrsmithlabs/treedoc/internal/walk"
)

const (
	smallCeiling = 2000
	largeCeiling = 5000
)

type harness struct {
	in, out string
	reg     *models.Registry
	client  *llm.Mock
	logs    *logging.TestLogger
	tel     *telemetry.TestTelemetry
	sum     *Summarizer
}

// newHarness wires a Summarizer whose estimator counts one token per byte,
// so prompt size drives model selection directly.
func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		in:     t.TempDir(),
		out:    t.TempDir(),
		client: &llm.Mock{},
		logs:   logging.NewTestLogger(),
		tel:    telemetry.NewTestTelemetry(),
	}
	var err error
	h.reg, err = models.NewRegistry([]config.ModelConfig{
		{ID: "small", MaxTokens: smallCeiling},
		{ID: "large", MaxTokens: largeCeiling},
	})
	require.NoError(t, err)

	opts := Options{
		ProjectName: "demo",
		OutputRoot:  h.out,
		Registry:    h.reg,
		Invoker:     invoker.New(4),
		Client:      h.client,
		Prompts:     prompts.New(prompts.Settings{ProjectName: "demo", ContentType: "code", TargetAudience: "dev"}),
		Estimator:   tokens.Func(func(s string) int { return len(s) }),
		URLs:        urls.New("https://github.com/acme/demo", "main"),
		Logger:      h.logs.Logger,
		Tracer:      h.tel.Tracer("test"),
		Meter:       h.tel.Meter("test"),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.sum, err = New(opts)
	require.NoError(t, err)
	return h
}

func (h *harness) file(t *testing.T, rel, content string) walk.File {
	t.Helper()
	p := filepath.Join(h.in, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return walk.File{Path: p, Rel: rel, Name: filepath.Base(p), Size: int64(len(content))}
}

func (h *harness) node(t *testing.T, rel string) *walk.Node {
	t.Helper()
	tree, err := walk.BuildTree(h.out, nil)
	require.NoError(t, err)
	for _, n := range tree.Nodes {
		if n.Rel == rel {
			return n
		}
	}
	t.Fatalf("no output directory %q", rel)
	return nil
}

func usage(t *testing.T, reg *models.Registry, id string) models.Usage {
	t.Helper()
	rec, ok := reg.Get(id)
	require.True(t, ok)
	return rec.Usage()
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestSummarizeFile_SmallFileUsesCheapestModel(t *testing.T) {
	h := newHarness(t, nil)
	f := h.file(t, "pkg/a.go", "package a")

	o := h.sum.SummarizeFile(context.Background(), f)
	require.Equal(t, Produced, o.Status, o.Err)
	assert.Equal(t, "small", o.Model)

	doc, err := artifact.ReadFile(filepath.Join(h.out, "pkg", "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "a.go", doc.FileName)
	assert.Equal(t, "pkg/a.go", doc.FilePath)
	assert.Equal(t, "https://github.com/acme/demo/blob/main/pkg/a.go", doc.URL)
	assert.Equal(t, "summary of small", doc.Summary)
	assert.Equal(t, "summary of small", doc.Questions)
	assert.Equal(t, artifact.Checksum([]byte("package a")), doc.Checksum)

	u := usage(t, h.reg, "small")
	assert.Equal(t, 1, u.Succeeded)
	assert.Equal(t, 1, u.Total)
	assert.Equal(t, 0, u.Failed)
	assert.Equal(t, 1000, u.OutputTokens)

	calls := h.client.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, len(calls[0].Prompt)+len(calls[1].Prompt), u.InputTokens)

	assert.Equal(t, models.Usage{}, usage(t, h.reg, "large"))
	h.logs.AssertLogged(t, zapcore.InfoLevel, "documented file")
	h.tel.AssertSpanExists(t, "treedoc.file")
	h.tel.AssertSpanAttribute(t, "treedoc.file", "outcome", "produced")
}

func TestSummarizeFile_FallsBackToLargerModel(t *testing.T) {
	h := newHarness(t, nil)
	f := h.file(t, "big.go", strings.Repeat("x", 3000))

	o := h.sum.SummarizeFile(context.Background(), f)
	require.Equal(t, Produced, o.Status)
	assert.Equal(t, "large", o.Model)
	assert.Greater(t, o.Need, smallCeiling)
	assert.Equal(t, 1, usage(t, h.reg, "large").Succeeded)
	assert.Equal(t, 0, usage(t, h.reg, "small").Total)
}

func TestSummarizeFile_OverBudgetHasNoSideEffects(t *testing.T) {
	h := newHarness(t, nil)
	f := h.file(t, "deep/huge.go", strings.Repeat("x", largeCeiling))

	o := h.sum.SummarizeFile(context.Background(), f)
	assert.Equal(t, Skipped, o.Status)
	assert.Equal(t, "over budget", o.Reason)
	assert.GreaterOrEqual(t, o.Need, largeCeiling)

	entries, err := os.ReadDir(h.out)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be created under the output root")
	assert.Empty(t, h.client.Calls())
	for _, id := range []string{"small", "large"} {
		assert.Equal(t, models.Usage{}, usage(t, h.reg, id))
	}

	h.logs.AssertLogged(t, zapcore.InfoLevel, "no model fits")
	h.logs.AssertField(t, "no model fits", "path", "deep/huge.go")
	h.logs.AssertField(t, "no model fits", "need", o.Need)
}

func TestSummarizeFile_FailureIsIsolated(t *testing.T) {
	h := newHarness(t, nil)
	h.client.Respond = func(_ context.Context, model, prompt string) (string, error) {
		if strings.Contains(prompt, "bad.go") {
			return "", errors.New("rejected")
		}
		return "ok from " + model, nil
	}
	bad := h.file(t, "dir/bad.go", "package bad")
	good := h.file(t, "dir/good.go", "package good")

	ob := h.sum.SummarizeFile(context.Background(), bad)
	og := h.sum.SummarizeFile(context.Background(), good)

	assert.Equal(t, Failed, ob.Status)
	assert.Equal(t, "invocation", ob.Reason)
	assert.Error(t, ob.Err)
	assert.Equal(t, Produced, og.Status)

	_, err := os.Stat(filepath.Join(h.out, "dir", "bad.json"))
	assert.True(t, os.IsNotExist(err))
	doc, err := artifact.ReadFile(filepath.Join(h.out, "dir", "good.json"))
	require.NoError(t, err)
	assert.Equal(t, "ok from small", doc.Summary)

	u := usage(t, h.reg, "small")
	assert.Equal(t, 1, u.Failed)
	assert.Equal(t, 1, u.Succeeded)
	assert.Equal(t, 1, u.Total)
	h.logs.AssertLogged(t, zapcore.ErrorLevel, "summarizing file failed")
}

func TestSummarizeFile_EmptySummaryWritesEmptyPayload(t *testing.T) {
	h := newHarness(t, nil)
	h.client.Respond = func(_ context.Context, _, prompt string) (string, error) {
		if strings.Contains(prompt, "questions") {
			return "Q?", nil
		}
		return "", nil
	}
	f := h.file(t, "empty.go", "package empty")

	o := h.sum.SummarizeFile(context.Background(), f)
	require.Equal(t, Produced, o.Status)

	info, err := os.Stat(filepath.Join(h.out, "empty.json"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSummarizeFile_ReadFailure(t *testing.T) {
	h := newHarness(t, nil)
	o := h.sum.SummarizeFile(context.Background(), walk.File{
		Path: filepath.Join(h.in, "missing.go"), Rel: "missing.go", Name: "missing.go",
	})
	assert.Equal(t, Failed, o.Status)
	assert.Equal(t, "read", o.Reason)
	assert.Equal(t, 0, usage(t, h.reg, "small").Failed)
}

func TestSummarizeFile_TooLarge(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxFileSize = 4 })
	f := h.file(t, "a.go", "package a")

	o := h.sum.SummarizeFile(context.Background(), f)
	assert.Equal(t, Skipped, o.Status)
	assert.Equal(t, "file too large", o.Reason)
	assert.Empty(t, h.client.Calls())
}

type fakeScrubber struct{}

func (fakeScrubber) IsEnabled() bool { return true }
func (fakeScrubber) Scrub(content string) *secrets.Result {
	return &secrets.Result{
		Scrubbed: strings.ReplaceAll(content, "hunter2", "[REDACTED]"),
		Findings: []secrets.Finding{{RuleID: "password"}},
	}
}

func TestSummarizeFile_ScrubsSecretsBeforePrompting(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Scrubber = fakeScrubber{} })
	f := h.file(t, "cfg.go", `const password = "hunter2"`)

	o := h.sum.SummarizeFile(context.Background(), f)
	require.Equal(t, Produced, o.Status)
	for _, c := range h.client.Calls() {
		assert.NotContains(t, c.Prompt, "hunter2")
		assert.Contains(t, c.Prompt, "[REDACTED]")
	}
	h.logs.AssertLogged(t, zapcore.WarnLevel, "redacted secrets")
}

func TestSummarizeFile_DryRun(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DryRun = true })
	f := h.file(t, "a.go", "package a")

	o := h.sum.SummarizeFile(context.Background(), f)
	assert.Equal(t, Produced, o.Status)
	assert.Equal(t, "dry run", o.Reason)
	assert.Empty(t, h.client.Calls())

	entries, err := os.ReadDir(h.out)
	require.NoError(t, err)
	assert.Empty(t, entries)

	u := usage(t, h.reg, "small")
	assert.Equal(t, 1, u.Succeeded)
	assert.Positive(t, u.InputTokens)
}

func TestSummarizeFile_IncrementalReuse(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Incremental = true })
	f := h.file(t, "a.go", "package a")

	require.Equal(t, Produced, h.sum.SummarizeFile(context.Background(), f).Status)
	require.Len(t, h.client.Calls(), 2)

	o := h.sum.SummarizeFile(context.Background(), f)
	assert.Equal(t, Reused, o.Status)
	assert.Len(t, h.client.Calls(), 2)
	assert.Equal(t, 1, usage(t, h.reg, "small").Total)

	f = h.file(t, "a.go", "package a // changed")
	assert.Equal(t, Produced, h.sum.SummarizeFile(context.Background(), f).Status)
	assert.Len(t, h.client.Calls(), 4)
}

func TestSummarizeFile_Metrics(t *testing.T) {
	h := newHarness(t, nil)
	h.sum.SummarizeFile(context.Background(), h.file(t, "a.go", "package a"))
	h.sum.SummarizeFile(context.Background(), h.file(t, "b.go", strings.Repeat("x", largeCeiling)))

	n, err := h.tel.CollectSum(context.Background(), "treedoc.units")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
