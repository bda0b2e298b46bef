package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/treedoc/internal/artifact"
	"github.com/fyrsmithlabs/treedoc/internal/config"
	"github.com/fyrsmithlabs/treedoc/internal/llm"
	"github.com/fyrsmithlabs/treedoc/internal/status"
)

const testConfig = `
project:
  name: demo
  repository_url: https://github.com/acme/demo
  branch: main
pipeline:
  encoding: approx
secrets:
  enabled: false
log:
  level: error
`

// project lays out a small source tree with a config file and returns its root.
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"treedoc.yaml":   testConfig,
		"main.go":        "package main\n\nfunc main() {}\n",
		"pkg/util.go":    "package pkg\n\nfunc Util() int { return 1 }\n",
		"pkg/README.txt": "utilities\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestModelsCommand(t *testing.T) {
	root := project(t)
	out, _, err := execute(t, "models", "--config", filepath.Join(root, "treedoc.yaml"), "-i", root)
	require.NoError(t, err)
	for _, m := range config.DefaultModels() {
		assert.Contains(t, out, m.ID)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	root := project(t)
	g := &globalFlags{}
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	models, _, err := cmd.Find([]string{"models"})
	require.NoError(t, err)
	require.NoError(t, models.ParseFlags([]string{
		"--config", filepath.Join(root, "treedoc.yaml"),
		"--input", root,
		"--output", "out",
		"--branch", "develop",
		"--incremental",
	}))

	g.configPath = filepath.Join(root, "treedoc.yaml")
	g.input = root
	g.output = "out"
	g.branch = "develop"
	g.incremental = true

	cfg, err := loadConfig(models, g)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, filepath.Join(root, "out"), cfg.Project.OutputRoot)
	assert.Equal(t, "develop", cfg.Project.Branch)
	assert.Equal(t, "https://github.com/acme/demo", cfg.Project.RepositoryURL)
	assert.True(t, cfg.Pipeline.Incremental)
}

func TestLoadConfig_ProviderFlagSelectsKey(t *testing.T) {
	t.Setenv("TREEDOC_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	root := project(t)
	cfgPath := filepath.Join(root, "treedoc.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig+"llm:\n  provider: cohere\n"), 0o644))

	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	models, _, err := cmd.Find([]string{"models"})
	require.NoError(t, err)
	require.NoError(t, models.ParseFlags([]string{"--config", cfgPath, "--input", root, "--provider", "anthropic"}))

	g := &globalFlags{configPath: cfgPath, input: root, provider: "anthropic"}
	cfg, err := loadConfig(models, g)
	require.NoError(t, err, "an invalid file value overridden by a flag must not fail")
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey.Value())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, _, err := execute(t, "models", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEstimateCommand(t *testing.T) {
	root := project(t)
	out, _, err := execute(t, "estimate", "--config", filepath.Join(root, "treedoc.yaml"), "-i", root, "-o", "out")
	require.NoError(t, err)

	assert.Contains(t, out, "Estimated usage")
	assert.Contains(t, out, "Total")
	_, statErr := os.Stat(filepath.Join(root, "out"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the output tree")
}

func TestIndex_EndToEnd(t *testing.T) {
	root := project(t)
	cfg, err := config.Load(filepath.Join(root, "treedoc.yaml"))
	require.NoError(t, err)
	cfg.Project.InputRoot = root
	cfg.Project.OutputRoot = "out"
	require.NoError(t, cfg.Finalize())

	var stdout, stderr bytes.Buffer
	mock := &llm.Mock{}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, runOptions{stdout: &stdout, stderr: &stderr, client: mock})
	require.NoError(t, err)
	defer a.close(ctx)

	res, err := a.run(ctx)
	require.NoError(t, err)
	// main.go, treedoc.yaml, pkg/util.go and pkg/README.txt
	assert.Equal(t, 4, res.Files.Produced)
	assert.Equal(t, 2, res.Folders.Produced)
	assert.Len(t, mock.Calls(), 4*2+2)

	out := filepath.Join(root, "out")
	fs, err := artifact.ReadFile(filepath.Join(out, "main.json"))
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/demo/blob/main/main.go", fs.URL)

	top, err := artifact.ReadFolder(out)
	require.NoError(t, err)
	assert.Equal(t, "demo", top.FolderName)
	require.Len(t, top.Folders, 1)
	assert.Equal(t, "pkg", top.Folders[0].FolderPath)

	assert.True(t, strings.Contains(stdout.String(), "Total"))
	assert.NotEmpty(t, a.tracker.Snapshot().RunID)
}

func TestIndex_StatusServer(t *testing.T) {
	root := project(t)
	cfg, err := config.Load(filepath.Join(root, "treedoc.yaml"))
	require.NoError(t, err)
	cfg.Project.InputRoot = root
	cfg.Status.Addr = "127.0.0.1:0"
	require.NoError(t, cfg.Finalize())

	ctx := context.Background()
	a, err := newApp(ctx, cfg, runOptions{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, client: &llm.Mock{}})
	require.NoError(t, err)
	defer a.close(ctx)
	require.NotNil(t, a.server)
	assert.NotEqual(t, "127.0.0.1:0", a.server.Addr())

	usage, err := status.NewClient(a.server.Addr()).Usage(ctx)
	require.NoError(t, err)
	require.NotNil(t, usage.Calls)
	assert.Equal(t, cfg.Pipeline.MaxConcurrentCalls, usage.Calls.Limit)
	assert.Zero(t, usage.Calls.InFlight)
	assert.Zero(t, usage.Calls.Queued)
}
