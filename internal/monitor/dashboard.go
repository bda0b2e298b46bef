// Package monitor renders a live terminal view of a running documentation
// job by polling its status server.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/treedoc/internal/orchestrator"
	"github.com/fyrsmithlabs/treedoc/internal/report"
	"github.com/fyrsmithlabs/treedoc/internal/status"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	fetchTimeout    = 5 * time.Second
)

// Source is what the dashboard polls. *status.Client satisfies it.
type Source interface {
	Progress(ctx context.Context) (report.Snapshot, error)
	Usage(ctx context.Context) (status.UsageResponse, error)
}

// Model is the bubbletea dashboard model.
type Model struct {
	source     Source
	addr       string
	interval   time.Duration
	lastUpdate time.Time
	state      State
	err        error
	quitting   bool

	bar progress.Model
}

// State is the data shown on screen.
type State struct {
	Progress report.Snapshot
	Usage    status.UsageResponse

	// Units per second between the last two polls.
	Rate        float64
	RateHistory []float64

	prevDone  int
	prevPhase orchestrator.Phase
	prevAt    time.Time
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling source every interval. addr is
// only displayed.
func NewModel(source Source, addr string, interval time.Duration) Model {
	return Model{
		source:   source,
		addr:     addr,
		interval: interval,
		bar: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(40),
		),
		state: State{RateHistory: make([]float64, 0, historySize)},
	}
}

// phaseBadge renders a phase with its status marker.
func phaseBadge(phase orchestrator.Phase, st orchestrator.PhaseStatus) string {
	name := string(phase)
	switch st {
	case orchestrator.StatusCompleted:
		return healthyStyle.Render("✓ " + name)
	case orchestrator.StatusInProgress:
		return warningStyle.Render("● " + name)
	case orchestrator.StatusSkipped:
		return dimStyle.Render("- " + name)
	}
	return dimStyle.Render("○ " + name)
}

// failureBadge flags failed invocations.
func failureBadge(failed int) string {
	if failed == 0 {
		return healthyStyle.Render("[✓]")
	}
	return errorStyle.Render(fmt.Sprintf("[✗ %d]", failed))
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time

type stateMsg struct {
	progress report.Snapshot
	usage    status.UsageResponse
	at       time.Time
}

type errMsg error

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), fetch(m.source))
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetch(source Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snap, err := source.Progress(ctx)
		if err != nil {
			return errMsg(err)
		}
		usage, err := source.Usage(ctx)
		if err != nil {
			return errMsg(err)
		}
		return stateMsg{progress: snap, usage: usage, at: time.Now()}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetch(m.source)
		}

	case tickMsg:
		return m, tea.Batch(tick(m.interval), fetch(m.source))

	case stateMsg:
		m.state = m.state.advance(msg)
		m.lastUpdate = msg.at
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// advance folds a poll into the state. The rate resets when the phase
// changes because Done restarts from zero.
func (s State) advance(msg stateMsg) State {
	next := s
	next.Progress = msg.progress
	next.Usage = msg.usage
	next.Rate = 0

	samePhase := s.prevPhase == msg.progress.Phase
	if samePhase && !s.prevAt.IsZero() {
		if elapsed := msg.at.Sub(s.prevAt).Seconds(); elapsed > 0 {
			if delta := msg.progress.Done - s.prevDone; delta > 0 {
				next.Rate = float64(delta) / elapsed
			}
		}
	}
	next.RateHistory = appendToHistory(s.RateHistory, next.Rate)
	next.prevDone = msg.progress.Done
	next.prevPhase = msg.progress.Phase
	next.prevAt = msg.at
	return next
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" treedoc watch ") + "\n\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach the status server") + "\n\n")
	b.WriteString(dimStyle.Render("Address: ") + valueStyle.Render(m.addr) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start a run with --status-addr to expose it.") + "\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry"))
	return containerStyle.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	p := m.state.Progress

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	runID := p.RunID
	if runID == "" {
		runID = "waiting for run"
	}
	b.WriteString(headerStyle.Render(" treedoc watch ") + "\n")
	b.WriteString(dimStyle.Render("Run: ") + valueStyle.Render(runID) + "   " + dimStyle.Render(lastUpdate) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Phases") + "\n  ")
	badges := make([]string, 0, len(orchestrator.AllPhases()))
	for _, ph := range orchestrator.AllPhases() {
		badges = append(badges, phaseBadge(ph, p.Phases[ph]))
	}
	b.WriteString(strings.Join(badges, "  ") + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Progress") + "\n")
	if p.Message != "" {
		b.WriteString(labelStyle.Render("  Current: ") + valueStyle.Render(p.Message) + "\n")
	}
	ratio := 0.0
	if p.Total > 0 {
		ratio = float64(p.Done) / float64(p.Total)
		if ratio > 1 {
			ratio = 1
		}
	}
	b.WriteString(labelStyle.Render("  Units: ") +
		m.bar.ViewAs(ratio) + " " +
		dimStyle.Render(fmt.Sprintf("%s / %s", report.FormatNumber(p.Done), report.FormatNumber(p.Total))) + "\n")
	b.WriteString(labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.state.Rate)) + "   " +
		createSparkline(m.state.RateHistory) + "\n")
	if !p.StartedAt.IsZero() {
		elapsed := time.Since(p.StartedAt)
		if !p.UpdatedAt.IsZero() {
			elapsed = p.UpdatedAt.Sub(p.StartedAt)
		}
		b.WriteString(labelStyle.Render("  Elapsed: ") + valueStyle.Render(FormatDuration(elapsed)) + "\n")
	}

	total := m.state.Usage.Total
	b.WriteString("\n" + sectionStyle.Render("┃ Usage") + "\n")
	b.WriteString(labelStyle.Render("  Tokens: ") +
		valueStyle.Render(report.FormatNumber(total.InputTokens)) + dimStyle.Render(" in  ") +
		valueStyle.Render(report.FormatNumber(total.OutputTokens)) + dimStyle.Render(" out") + "\n")
	b.WriteString(labelStyle.Render("  Calls: ") +
		valueStyle.Render(report.FormatNumber(total.Succeeded)) + dimStyle.Render(" ok ") +
		failureBadge(total.Failed) + "\n")
	if c := m.state.Usage.Calls; c != nil {
		b.WriteString(labelStyle.Render("  Gate: ") +
			valueStyle.Render(fmt.Sprintf("%d/%d", c.InFlight, c.Limit)) + dimStyle.Render(" in flight  ") +
			valueStyle.Render(report.FormatNumber(c.Queued)) + dimStyle.Render(" queued") + "\n")
	}
	b.WriteString(labelStyle.Render("  Est. cost: ") + valueStyle.Render(report.FormatCost(total.Cost)) + "\n")
	for _, line := range m.state.Usage.Models {
		if line.Total == 0 && line.FolderSucceeded == 0 && line.FolderFailed == 0 {
			continue
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("    %-28s", line.ID)) +
			valueStyle.Render(report.FormatNumber(line.Total)) + dimStyle.Render(" calls") + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
