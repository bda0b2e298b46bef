package main

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/treedoc/internal/models"
	"github.com/fyrsmithlabs/treedoc/internal/monitor"
	"github.com/fyrsmithlabs/treedoc/internal/report"
	"github.com/fyrsmithlabs/treedoc/internal/status"
)

const defaultWatchAddr = "localhost:9464"

func newIndexCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Summarize every file and folder of the project",
		Long: `Summarize every file of the project with the cheapest model whose
context fits, then roll the summaries up into one summary.json per folder.

Examples:
  # Document the current directory
  treedoc index

  # Document another project, reusing unchanged artifacts
  treedoc index -i ../service -o ../service/.treedoc/docs/json --incremental`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, g, runOptions{stdout: stdout, stderr: stderr})
		},
	}
}

func newEstimateCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Estimate token usage and cost without calling a model",
		Long: `Run the file pass without calling a model or writing artifacts. Every
file that fits a model is booked as a successful call so the usage table
shows the projected tokens and cost. Folders are not estimated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, g, runOptions{dryRun: true, stdout: stdout, stderr: stderr})
		},
	}
}

func runPipeline(cmd *cobra.Command, g *globalFlags, opts runOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	_, err = a.run(ctx)
	return err
}

func newModelsCmd(g *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the configured models in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			reg, err := models.NewRegistry(cfg.Models)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, report.RenderModels(reg.Records()))
			return err
		},
	}
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live dashboard of a running index",
		Long: `Poll the status server of a running "treedoc index --status-addr ..." and
render its progress and model usage.

Examples:
  treedoc index --status-addr localhost:9464 &
  treedoc watch --status-addr localhost:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := g.statusAddr
			if addr == "" {
				addr = defaultWatchAddr
			}
			model := monitor.NewModel(status.NewClient(addr), addr, interval)
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "polling interval")
	return cmd
}
