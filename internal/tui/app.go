// Package tui provides the interactive terminal dashboard over the run
// controller API.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"ethicsengine/internal/models"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// refreshInterval is how often the dashboard re-polls the API.
const refreshInterval = time.Second

// App is the dashboard application model.
type App struct {
	client       *Client
	runs         []models.RunManifest
	selectedIdx  int
	mode         string // "list", "detail"
	currentRun   *models.RunManifest
	summary      []ConfigRow
	progress     progress.Model
	message      string
	width        int
	height       int
	serverOnline bool
}

// New creates a dashboard talking to the API at apiAddr.
func New(apiAddr string) *App {
	return &App{
		client:   NewClient(apiAddr),
		mode:     "list",
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Run starts the dashboard.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type runsLoadedMsg struct{ runs []models.RunManifest }
type runDetailMsg struct {
	run     *models.RunManifest
	summary []ConfigRow
}
type serverStatusMsg struct{ online bool }
type cancelSentMsg struct{ runID string }
type runStartedMsg struct{ runID string }
type tickMsg time.Time
type errMsg struct{ err error }

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchRuns(), a.checkServer(), a.tickCmd())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" {
				a.mode = "list"
				a.currentRun = nil
				return a, a.fetchRuns()
			}

		case "up", "k":
			if a.mode == "list" && a.selectedIdx > 0 {
				a.selectedIdx--
			}

		case "down", "j":
			if a.mode == "list" && a.selectedIdx < len(a.runs)-1 {
				a.selectedIdx++
			}

		case "enter":
			if a.mode == "list" && len(a.runs) > 0 {
				run := a.runs[a.selectedIdx]
				a.mode = "detail"
				return a, a.fetchRunDetail(run.RunID)
			}

		case "c":
			if len(a.runs) > 0 && a.mode == "list" {
				run := a.runs[a.selectedIdx]
				if !run.Status.Terminal() {
					return a, a.cancelRun(run.RunID)
				}
				a.message = "run already finished"
			}

		case "s":
			if a.mode == "list" {
				return a, a.startRun("scenarios")
			}

		case "b":
			if a.mode == "list" {
				return a, a.startRun("benchmarks")
			}

		case "r":
			if a.mode == "detail" && a.currentRun != nil {
				return a, a.fetchRunDetail(a.currentRun.RunID)
			}
			return a, a.fetchRuns()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.progress.Width = msg.Width - 8

	case runsLoadedMsg:
		a.runs = msg.runs
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = max(0, len(a.runs)-1)
		}

	case runDetailMsg:
		a.currentRun = msg.run
		a.summary = msg.summary

	case serverStatusMsg:
		a.serverOnline = msg.online

	case cancelSentMsg:
		a.message = "cancelling run " + shortID(msg.runID)
		return a, a.fetchRuns()

	case runStartedMsg:
		a.message = "started run " + shortID(msg.runID)
		return a, a.fetchRuns()

	case tickMsg:
		cmds := []tea.Cmd{a.tickCmd(), a.checkServer()}
		if a.mode == "detail" && a.currentRun != nil {
			cmds = append(cmds, a.fetchRunDetail(a.currentRun.RunID))
		} else {
			cmds = append(cmds, a.fetchRuns())
		}
		return a, tea.Batch(cmds...)

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	serverStatus := onlineStyle.Render("● API")
	if !a.serverOnline {
		serverStatus = offlineStyle.Render("○ API")
	}
	b.WriteString(titleStyle.Render("EthicsEngine Runs") + "  " + serverStatus + "\n\n")

	switch a.mode {
	case "detail":
		b.WriteString(a.detailView())
	default:
		b.WriteString(a.listView())
	}

	if a.message != "" {
		b.WriteString("\n" + helpStyle.Render(a.message))
	}
	b.WriteString("\n" + helpStyle.Render(a.helpLine()))
	return b.String()
}

func (a *App) helpLine() string {
	if a.mode == "detail" {
		return "esc back · r refresh · q quit"
	}
	return "↑/↓ select · enter detail · s scenarios run · b benchmarks run · c cancel · r refresh · q quit"
}

func (a *App) listView() string {
	if len(a.runs) == 0 {
		return helpStyle.Render("no runs yet")
	}

	var b strings.Builder
	b.WriteString(rowStyle.Render(fmt.Sprintf("%-10s %-22s %6s %6s %6s %6s", "RUN", "STATUS", "TOTAL", "DONE", "FAIL", "PEND")) + "\n")
	for i, run := range a.runs {
		line := fmt.Sprintf("%-10s %-22s %6d %6d %6d %6d",
			shortID(run.RunID), statusLabel(run.Status),
			run.Counts.Total, run.Counts.Succeeded, run.Counts.Failed, run.Counts.Pending)
		if i == a.selectedIdx {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(rowStyle.Render(line) + "\n")
		}
	}
	return b.String()
}

func (a *App) detailView() string {
	if a.currentRun == nil {
		return helpStyle.Render("loading...")
	}
	run := a.currentRun

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Run %s\n", run.RunID))
	b.WriteString(fmt.Sprintf("Status: %s\n", statusStyle(run.Status).Render(string(run.Status))))
	b.WriteString(fmt.Sprintf("Tasks: %d total, %d succeeded, %d failed, %d pending, %d running\n",
		run.Counts.Total, run.Counts.Succeeded, run.Counts.Failed, run.Counts.Pending, run.Counts.Running))
	if run.Counts.Total > 0 {
		done := float64(run.Counts.Succeeded+run.Counts.Failed) / float64(run.Counts.Total)
		b.WriteString(a.progress.ViewAs(done) + "\n")
	}
	b.WriteString(fmt.Sprintf("Started: %s\n", run.CreatedAt.Local().Format(time.RFC822)))
	if !run.FinishedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Finished: %s\n", run.FinishedAt.Local().Format(time.RFC822)))
	}

	if len(a.summary) > 0 {
		var t strings.Builder
		t.WriteString(fmt.Sprintf("%-40s %6s %6s %6s %8s\n", "CONFIG", "TOTAL", "OK", "FAIL", "RATE"))
		for _, row := range a.summary {
			t.WriteString(fmt.Sprintf("%-40s %6d %6d %6d %7.0f%%\n",
				row.ConfigID, row.Total, row.Succeeded, row.Failed, row.SuccessRate*100))
		}
		b.WriteString("\n" + panelStyle.Render(strings.TrimRight(t.String(), "\n")))
	}
	return b.String()
}

func statusLabel(s models.RunStatus) string {
	return strings.ToUpper(string(s))
}

func statusStyle(s models.RunStatus) lipgloss.Style {
	switch s {
	case models.RunCompleted:
		return onlineStyle
	case models.RunCompletedWithErrors:
		return lipgloss.NewStyle().Foreground(warningColor)
	case models.RunCancelled:
		return offlineStyle
	default:
		return lipgloss.NewStyle().Foreground(fgColor)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- Commands ---

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) fetchRuns() tea.Cmd {
	return func() tea.Msg {
		runs, err := a.client.ListRuns()
		if err != nil {
			return errMsg{err}
		}
		return runsLoadedMsg{runs}
	}
}

func (a *App) fetchRunDetail(runID string) tea.Cmd {
	return func() tea.Msg {
		run, err := a.client.GetRun(runID)
		if err != nil {
			return errMsg{err}
		}
		summary, err := a.client.GetSummary(runID)
		if err != nil {
			return errMsg{err}
		}
		return runDetailMsg{run: run, summary: summary}
	}
}

func (a *App) startRun(kind string) tea.Cmd {
	return func() tea.Msg {
		runID, err := a.client.CreateRun(kind)
		if err != nil {
			return errMsg{err}
		}
		return runStartedMsg{runID}
	}
}

func (a *App) cancelRun(runID string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.CancelRun(runID); err != nil {
			return errMsg{err}
		}
		return cancelSentMsg{runID}
	}
}

func (a *App) checkServer() tea.Cmd {
	return func() tea.Msg {
		return serverStatusMsg{online: a.client.Health()}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
