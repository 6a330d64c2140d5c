package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/stockwatch/internal/models"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// CmdBarModel manages the command input bar
type CmdBarModel struct {
	input   textinput.Model
	focused bool
	message string
}

// NewCmdBarModel creates a new command bar
func NewCmdBarModel() *CmdBarModel {
	ti := textinput.New()
	ti.Placeholder = "analyze <code> [simple|full]"
	ti.CharLimit = 64
	return &CmdBarModel{
		input: ti,
	}
}

// Init implements tea.Model
func (m *CmdBarModel) Init() tea.Cmd {
	return nil
}

// Focused reports whether the bar is accepting input.
func (m *CmdBarModel) Focused() bool {
	return m.focused
}

// Focus focuses the command bar
func (m *CmdBarModel) Focus() tea.Cmd {
	m.focused = true
	m.message = ""
	return m.input.Focus()
}

// Blur unfocuses the command bar
func (m *CmdBarModel) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
}

// Submit returns the current input and blurs
func (m *CmdBarModel) Submit() string {
	val := m.input.Value()
	m.Blur()
	return val
}

// SetMessage replaces the hint line until the next focus.
func (m *CmdBarModel) SetMessage(msg string) {
	m.message = msg
}

// Update handles messages
func (m *CmdBarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command bar
func (m *CmdBarModel) View() string {
	if m.focused {
		prompt := promptStyle.Render(": ")
		return cmdBarStyle.Render(prompt + m.input.View())
	}
	if m.message != "" {
		return cmdBarStyle.Render(m.message)
	}
	return cmdBarStyle.Render("Press : to enter a command (analyze, open)")
}

// Execute processes a command
func (m *CmdBarModel) Execute(client *Client, input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	return func() tea.Msg {
		switch cmd {
		case "analyze", "a":
			if len(args) < 1 {
				return cmdResultMsg{message: "Usage: analyze <code> [simple|full]"}
			}
			kind := models.ReportKindSimple
			if len(args) > 1 {
				kind = models.ReportKind(args[1])
			}
			id, err := client.Submit(args[0], kind)
			if err != nil {
				return cmdResultMsg{message: fmt.Sprintf("Error: %v", err)}
			}
			return cmdResultMsg{message: "Submitted " + id, openTask: id}

		case "open", "o":
			if len(args) < 1 {
				return cmdResultMsg{message: "Usage: open <task_id>"}
			}
			return cmdResultMsg{openTask: args[0]}

		default:
			return cmdResultMsg{message: fmt.Sprintf("Unknown command: %s", cmd)}
		}
	}
}

type cmdResultMsg struct {
	message  string
	openTask string
}
