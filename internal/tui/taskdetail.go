package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/stockwatch/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// TaskDetailModel manages the task detail screen
type TaskDetailModel struct {
	client  *Client
	taskID  string
	task    *models.TaskRecord
	width   int
	height  int
	loading bool
	scroll  int
}

// NewTaskDetailModel creates a new task detail model
func NewTaskDetailModel(client *Client) *TaskDetailModel {
	return &TaskDetailModel{
		client: client,
	}
}

// SetTask sets the task ID to display
func (m *TaskDetailModel) SetTask(id string) {
	m.taskID = id
	m.task = nil
	m.scroll = 0
	m.loading = true
}

// TaskID returns the task being displayed.
func (m *TaskDetailModel) TaskID() string {
	return m.taskID
}

// SetSize sets the dimensions
func (m *TaskDetailModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Init implements tea.Model
func (m *TaskDetailModel) Init() tea.Cmd {
	return nil
}

// Refresh fetches task details
func (m *TaskDetailModel) Refresh() tea.Cmd {
	id := m.taskID
	return func() tea.Msg {
		task, err := m.client.GetTask(id)
		if err != nil {
			return errMsg{err}
		}
		return taskDetailLoadedMsg{task}
	}
}

// Update handles messages
func (m *TaskDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDetailLoadedMsg:
		if msg.task.ID != m.taskID {
			return m, nil
		}
		m.loading = false
		m.task = msg.task
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.scroll++
		case "k", "up":
			if m.scroll > 0 {
				m.scroll--
			}
		case "r":
			return m, m.Refresh()
		}
	}
	return m, nil
}

// View renders the task detail
func (m *TaskDetailModel) View() string {
	if m.loading || m.task == nil {
		return "Loading task details..."
	}
	t := m.task

	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%s report)", t.Symbol, t.ReportKind)))
	b.WriteString("\n\n")

	b.WriteString(m.renderField("ID", t.ID))
	b.WriteString(m.renderField("Status", formatStatus(t.Status)))
	b.WriteString(m.renderField("Submitted", formatTime(&t.SubmittedAt)))
	b.WriteString(m.renderField("Started", formatTime(t.StartedAt)))
	b.WriteString(m.renderField("Finished", formatTime(t.FinishedAt)))
	if t.StartedAt != nil && t.FinishedAt != nil {
		b.WriteString(m.renderField("Duration", t.FinishedAt.Sub(*t.StartedAt).Round(time.Millisecond).String()))
	}

	if t.Error != "" {
		b.WriteString(sectionStyle.Render("Error"))
		b.WriteString("\n  " + statusFailed.Render(t.Error) + "\n")
	}

	if r := t.Result; r != nil {
		b.WriteString(sectionStyle.Render("Result"))
		b.WriteString("\n")
		b.WriteString(m.renderField("  Name", r.Name))
		b.WriteString(m.renderField("  Advice", r.OperationAdvice))
		b.WriteString(m.renderField("  Trend", r.TrendPrediction))
		b.WriteString(m.renderField("  Sentiment", fmt.Sprintf("%.2f", r.SentimentScore)))
		if r.Summary != "" {
			b.WriteString("\n")
			for _, line := range strings.Split(r.Summary, "\n") {
				b.WriteString("  " + line + "\n")
			}
		}
	}

	// Apply scroll
	lines := strings.Split(b.String(), "\n")
	if m.scroll >= len(lines) {
		m.scroll = len(lines) - 1
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
	visible := lines[m.scroll:]
	if m.height > 0 && len(visible) > m.height {
		visible = visible[:m.height]
	}

	return strings.Join(visible, "\n")
}

func (m *TaskDetailModel) renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

type taskDetailLoadedMsg struct {
	task *models.TaskRecord
}
