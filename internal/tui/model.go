package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sdnguard/internal/analysis"
	"sdnguard/internal/controller"
)

// TickMsg drives the periodic refresh.
type TickMsg time.Time

// Source is what the dashboard reads from the running controller.
type Source interface {
	Stats() *analysis.TrafficStats
	Status() controller.Status
}

type DashboardModel struct {
	source     Source
	bps        float64
	pps        float64
	topDst     []analysis.IPStat
	topSrc     []analysis.IPStat
	sent       int64
	protocols  []analysis.ProtocolStat
	status     controller.Status
	table      table.Model
	switchName string
	target     string
	threshold  int
	window     time.Duration
}

func NewDashboardModel(source Source, switchName, target string, threshold int, window time.Duration) DashboardModel {
	columns := []table.Column{
		{Title: "Destination", Width: 18},
		{Title: "Packets", Width: 10},
		{Title: "Window", Width: 8},
	}

	return DashboardModel{
		source:     source,
		switchName: switchName,
		target:     target,
		threshold:  threshold,
		window:     window,
		table:      newTable(columns, 10),
	}
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func (m DashboardModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
