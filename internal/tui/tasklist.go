package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/stockwatch/internal/models"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
)

// TaskItem implements list.Item for the task list
type TaskItem struct {
	Record models.TaskRecord
}

func (i TaskItem) FilterValue() string { return i.Record.Symbol }
func (i TaskItem) Title() string {
	return fmt.Sprintf("%s  %s", i.Record.Symbol, i.Record.ReportKind)
}
func (i TaskItem) Description() string {
	desc := formatStatus(i.Record.Status)
	switch {
	case i.Record.Result != nil && i.Record.Result.OperationAdvice != "":
		desc += " • " + i.Record.Result.OperationAdvice
	case i.Record.Error != "":
		desc += " • " + truncate(i.Record.Error, 40)
	}
	if age := i.Record.SortTime(); !age.IsZero() {
		desc += " • " + formatAge(time.Since(age))
	}
	return desc
}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return statusPending.Render("● pending")
	case models.TaskStatusRunning:
		return statusRunning.Render("● running")
	case models.TaskStatusCompleted:
		return statusCompleted.Render("● completed")
	case models.TaskStatusFailed:
		return statusFailed.Render("● failed")
	default:
		return string(status)
	}
}

// TaskListModel manages the task list screen
type TaskListModel struct {
	client  *Client
	list    list.Model
	tasks   []TaskItem
	limit   int
	width   int
	height  int
	loading bool
}

// NewTaskListModel creates a new task list model
func NewTaskListModel(client *Client, limit int) *TaskListModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Analysis tasks"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle

	return &TaskListModel{
		client:  client,
		list:    l,
		limit:   limit,
		loading: true,
	}
}

// Init initializes the task list
func (m *TaskListModel) Init() tea.Cmd {
	return m.Refresh()
}

// SetSize sets the list dimensions
func (m *TaskListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(w, h)
}

// SelectedTask returns the currently selected task
func (m *TaskListModel) SelectedTask() *TaskItem {
	if item := m.list.SelectedItem(); item != nil {
		task := item.(TaskItem)
		return &task
	}
	return nil
}

// Filtering reports whether the user is typing a list filter.
func (m *TaskListModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// Refresh fetches tasks from the API
func (m *TaskListModel) Refresh() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.client.ListTasks(m.limit)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

// Update handles messages
func (m *TaskListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		m.loading = false
		m.tasks = msg.tasks
		items := make([]list.Item, len(m.tasks))
		for i, t := range m.tasks {
			items[i] = t
		}
		return m, m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list
func (m *TaskListModel) View() string {
	if m.loading {
		return "Loading tasks..."
	}
	return m.list.View()
}

type tasksLoadedMsg struct {
	tasks []TaskItem
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
