package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case TickMsg:
		stats := m.source.Stats()
		m.bps, m.pps = stats.GetRates()
		m.topDst = stats.GetTopDestinations(10)
		m.topSrc = stats.GetTopTalkers(5)
		m.sent = stats.GetTotalDataTransferred()
		m.protocols = stats.GetProtocolStats()
		m.status = m.source.Status()

		rows := make([]table.Row, len(m.topDst))
		for i, stat := range m.topDst {
			rows[i] = table.Row{
				stat.IP,
				fmt.Sprintf("%d", stat.Packets),
				fmt.Sprintf("%d", m.status.WindowCounts[stat.IP]),
			}
		}
		m.table.SetRows(rows)

		return m, tickCmd()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}
