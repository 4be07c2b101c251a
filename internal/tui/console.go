package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sdnguard/internal/models"
)

// BatchRunner is the executor as seen by the console.
type BatchRunner interface {
	RunLines(ctx context.Context, source string, lines []string) models.BatchReport
	History() []models.BatchReport
}

// ReportMsg carries the outcome of a line typed into the console.
type ReportMsg models.BatchReport

// ConsoleModel is the executor's foreground loop: batch history plus a
// prompt whose lines run through the same dispatcher as the queue.
type ConsoleModel struct {
	ctx       context.Context
	runner    BatchRunner
	queuePath string
	input     textinput.Model
	table     table.Model
	history   []models.BatchReport
	last      *models.BatchReport
	running   bool
}

func NewConsoleModel(ctx context.Context, runner BatchRunner, queuePath string) ConsoleModel {
	ti := textinput.New()
	ti.Placeholder = "py link-status h3 s2 down  |  ovs-vsctl show"
	ti.Prompt = "executor> "
	ti.CharLimit = 512
	ti.Width = 72
	ti.Focus()

	columns := []table.Column{
		{Title: "Batch", Width: 22},
		{Title: "Source", Width: 8},
		{Title: "Cmds", Width: 5},
		{Title: "Failed", Width: 6},
		{Title: "Finished", Width: 10},
	}

	return ConsoleModel{
		ctx:       ctx,
		runner:    runner,
		queuePath: queuePath,
		input:     ti,
		table:     newTable(columns, 8),
	}
}

func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m ConsoleModel) run(line string) tea.Cmd {
	return func() tea.Msg {
		return ReportMsg(m.runner.RunLines(m.ctx, "console", []string{line}))
	}
}

func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" || m.running {
				return m, nil
			}
			m.running = true
			return m, m.run(line)
		}

	case ReportMsg:
		report := models.BatchReport(msg)
		m.running = false
		m.last = &report
		m.refresh()
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ConsoleModel) refresh() {
	m.history = m.runner.History()
	rows := make([]table.Row, 0, len(m.history))
	// Newest first.
	for i := len(m.history) - 1; i >= 0; i-- {
		b := m.history[i]
		rows = append(rows, table.Row{
			b.ID,
			b.Source,
			fmt.Sprintf("%d", len(b.Results)),
			fmt.Sprintf("%d", b.Failed()),
			b.Finished.Format("15:04:05"),
		})
	}
	m.table.SetRows(rows)
	if m.last == nil && len(m.history) > 0 {
		last := m.history[len(m.history)-1]
		m.last = &last
	}
}

func (m ConsoleModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("sdnguard executor - polling %s", m.queuePath))
	historyBox := infoStyle.Render("Batches\n" + m.table.View())
	detailBox := infoStyle.Render("Last batch:\n" + m.detail())

	body := lipgloss.JoinVertical(lipgloss.Left, title, historyBox, detailBox, m.input.View())
	return body + "\nEnter runs a line, esc quits."
}

func (m ConsoleModel) detail() string {
	if m.last == nil {
		return "no batches yet"
	}
	var lines []string
	for _, r := range m.last.Results {
		status := okStyle.Render("ok  ")
		if r.Err != nil {
			status = alertStyle.Render("FAIL")
		}
		line := fmt.Sprintf("%s %-48s %s", status, r.Line, r.Duration.Truncate(time.Millisecond))
		if r.Err != nil {
			line += "\n     " + r.Error
		} else if r.Output != "" {
			first, _, _ := strings.Cut(r.Output, "\n")
			line += "\n     " + first
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "empty batch"
	}
	return strings.Join(lines, "\n")
}
