// Package tui provides the interactive terminal monitor for stockwatch.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/stockwatch/internal/controlplane"
)

// RefreshInterval is how often the monitor polls the daemon.
const RefreshInterval = 2 * time.Second

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

type mode int

const (
	modeList mode = iota
	modeDetail
)

// App is the main TUI application model.
type App struct {
	client  *Client
	list    *TaskListModel
	detail  *TaskDetailModel
	cmdBar  *CmdBarModel
	mode    mode
	width   int
	height  int
	health  *healthMsg
	message string
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	client := NewClient(apiAddr)
	return &App{
		client: client,
		list:   NewTaskListModel(client, 100),
		detail: NewTaskDetailModel(client),
		cmdBar: NewCmdBarModel(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.list.Init(), a.checkDaemon(), a.tickCmd())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.SetSize(msg.Width, msg.Height-4)
		a.detail.SetSize(msg.Width, msg.Height-4)
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.refresh(), a.checkDaemon(), a.tickCmd())

	case healthMsg:
		a.health = &msg
		return a, nil

	case cmdResultMsg:
		if msg.message != "" {
			a.cmdBar.SetMessage(msg.message)
		}
		if msg.openTask != "" {
			a.mode = modeDetail
			a.detail.SetTask(msg.openTask)
			return a, tea.Batch(a.detail.Refresh(), a.list.Refresh())
		}
		return a, nil

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		return a, nil

	case tasksLoadedMsg:
		a.message = ""
		_, cmd := a.list.Update(msg)
		return a, cmd

	case taskDetailLoadedMsg:
		a.message = ""
		_, cmd := a.detail.Update(msg)
		return a, cmd
	}

	if a.cmdBar.Focused() {
		_, cmd := a.cmdBar.Update(msg)
		return a, cmd
	}
	if a.mode == modeList {
		_, cmd := a.list.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.cmdBar.Focused() {
		if msg.String() == "enter" {
			return a, a.cmdBar.Execute(a.client, a.cmdBar.Submit())
		}
		_, cmd := a.cmdBar.Update(msg)
		return a, cmd
	}

	if a.mode == modeList && a.list.Filtering() {
		_, cmd := a.list.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "q":
		if a.mode == modeList {
			return a, tea.Quit
		}
		a.mode = modeList
		return a, nil
	case ":":
		return a, a.cmdBar.Focus()
	case "esc":
		if a.mode == modeDetail {
			a.mode = modeList
			return a, a.list.Refresh()
		}
	case "enter":
		if a.mode == modeList {
			if task := a.list.SelectedTask(); task != nil {
				a.mode = modeDetail
				a.detail.SetTask(task.Record.ID)
				return a, a.detail.Refresh()
			}
		}
	case "r":
		return a, a.refresh()
	}

	if a.mode == modeDetail {
		_, cmd := a.detail.Update(msg)
		return a, cmd
	}
	_, cmd := a.list.Update(msg)
	return a, cmd
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	status := offlineStyle.Render("○ DAEMON")
	workers := ""
	if a.health != nil && a.health.err == nil {
		status = onlineStyle.Render("● DAEMON")
		w := a.health.resp.Workers
		workers = fmt.Sprintf("workers %d/%d busy, %d queued", w.Running, w.Size, w.Queued)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("stockwatch"), " ", status, "  ", helpStyle.Render(workers)))
	b.WriteString("\n")

	if a.mode == modeDetail {
		b.WriteString(a.detail.View())
	} else {
		b.WriteString(a.list.View())
	}
	b.WriteString("\n")

	if a.message != "" {
		b.WriteString(statusBarStyle.Render(a.message))
		b.WriteString("\n")
	}
	b.WriteString(a.cmdBar.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: open • esc: back • r: refresh • :: command • q: quit"))

	return b.String()
}

func (a *App) refresh() tea.Cmd {
	if a.mode == modeDetail {
		return tea.Batch(a.detail.Refresh(), a.list.Refresh())
	}
	return a.list.Refresh()
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		resp, err := a.client.Health()
		return healthMsg{resp: resp, err: err}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type errMsg struct {
	err error
}

type tickMsg time.Time

type healthMsg struct {
	resp *controlplane.HealthResponse
	err  error
}
