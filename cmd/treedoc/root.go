package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/treedoc/internal/config"
	"github.com/fyrsmithlabs/treedoc/internal/gitinfo"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	input       string
	output      string
	name        string
	repoURL     string
	branch      string
	provider    string
	statusAddr  string
	incremental bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "treedoc",
		Short: "Generate LLM documentation for a source tree",
		Long: `treedoc walks a project, asks a language model to summarize every file
and then rolls the summaries up folder by folder into a JSON tree that
mirrors the project layout.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (default ./treedoc.yaml)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: console or json")
	pf.StringVarP(&g.input, "input", "i", "", "project root to document")
	pf.StringVarP(&g.output, "output", "o", "", "directory for the JSON artifacts")
	pf.StringVar(&g.name, "name", "", "project name (default: input directory name)")
	pf.StringVar(&g.repoURL, "repo-url", "", "repository web URL used for links")
	pf.StringVar(&g.branch, "branch", "", "branch used for links")
	pf.StringVar(&g.provider, "provider", "", "LLM provider: openai or anthropic")
	pf.StringVar(&g.statusAddr, "status-addr", "", "serve /health, /progress and /metrics on this address")
	pf.BoolVar(&g.incremental, "incremental", false, "reuse artifacts whose inputs are unchanged")

	root.AddCommand(
		newIndexCmd(g, stdout, stderr),
		newEstimateCmd(g, stdout, stderr),
		newModelsCmd(g, stdout),
		newWatchCmd(g),
	)
	return root
}

// loadConfig layers flags over file and environment values, fills the
// repository link from git when unset and resolves paths.
func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	p := &cfg.Project
	if flags.Changed("input") {
		p.InputRoot = g.input
	}
	if flags.Changed("output") {
		p.OutputRoot = g.output
	}
	if flags.Changed("name") {
		p.Name = g.name
	}
	if flags.Changed("repo-url") {
		p.RepositoryURL = g.repoURL
	}
	if flags.Changed("branch") {
		p.Branch = g.branch
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider = g.provider
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("status-addr") {
		cfg.Status.Addr = g.statusAddr
	}
	if flags.Changed("incremental") {
		cfg.Pipeline.Incremental = g.incremental
	}

	if p.RepositoryURL == "" || p.Branch == "" {
		info, err := gitinfo.Detect(p.InputRoot)
		if err == nil {
			if p.RepositoryURL == "" {
				p.RepositoryURL = gitinfo.WebURL(info.RemoteURL)
			}
			if p.Branch == "" {
				p.Branch = info.Branch
			}
		}
	}
	if p.RepositoryURL != "" && p.Branch == "" {
		p.Branch = "master"
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
