package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))
)

func (m DashboardModel) View() string {
	headerText := fmt.Sprintf("sdnguard - switch %s - protecting %s (>%d pkts / %s)",
		m.switchName, m.target, m.threshold, m.window)
	title := titleStyle.Render(headerText)

	// QoS Panel
	qos := fmt.Sprintf("Bandwidth: %s\nPacket Rate: %.2f PPS\nFrames: %d (IPv4 %d)\nData: %s\nBindings: %d",
		formatBps(m.bps), m.pps, m.status.Totals.Frames, m.status.Totals.IPv4Frames, formatBytes(m.sent), m.status.Bindings)
	qosBox := infoStyle.Render(qos)

	// Protocols
	var protoStrs []string
	limit := 5
	if len(m.protocols) < limit {
		limit = len(m.protocols)
	}

	for i := 0; i < limit; i++ {
		p := m.protocols[i]
		protoStrs = append(protoStrs, fmt.Sprintf("%s: %d", p.Protocol, p.Count))
	}
	if len(protoStrs) == 0 {
		protoStrs = append(protoStrs, "Waiting for data...")
	}
	protoBox := infoStyle.Render("Protocols:\n" + strings.Join(protoStrs, "\n"))

	migBox := infoStyle.Render("Migration:\n" + m.migrationText())

	dstBox := infoStyle.Render("Top Destinations\n" + m.table.View())
	srcBox := infoStyle.Render("Top Sources:\n" + m.sourceText())
	alertBox := infoStyle.Render("Alerts:\n" + m.alertText())

	// Layout
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, qosBox, protoBox, migBox)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, dstBox, srcBox, alertBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, row2)

	return body + "\nPress q to quit."
}

func (m DashboardModel) migrationText() string {
	rec := m.status.Migration
	if rec == nil {
		return okStyle.Render("idle, latch open")
	}
	lines := []string{
		fmt.Sprintf("State: %s", m.status.State),
		fmt.Sprintf("Host: %s  %s:%s -> %s:%s", rec.Host, rec.From.Switch, rec.From.Port, rec.To.Switch, rec.To.Port),
		fmt.Sprintf("Trigger: %s (%d pkts)", rec.Destination, rec.PacketCount),
	}
	if rec.Diagnostic != "" {
		first, _, _ := strings.Cut(rec.Diagnostic, "\n")
		lines = append(lines, alertStyle.Render(first))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) alertText() string {
	alerts := m.status.Alerts
	if len(alerts) == 0 {
		return "none"
	}
	if len(alerts) > 5 {
		alerts = alerts[len(alerts)-5:]
	}
	var out []string
	for _, a := range alerts {
		line := fmt.Sprintf("%s %s", a.Timestamp.Format("15:04:05"), a.Message)
		if a.Triggered {
			line = alertStyle.Render(line)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// sourceText lists the heaviest senders, so a flooding source shows next to
// the destination it floods.
func (m DashboardModel) sourceText() string {
	if len(m.topSrc) == 0 {
		return "Waiting for data..."
	}
	var out []string
	for _, s := range m.topSrc {
		out = append(out, fmt.Sprintf("%-15s %6d  %s", s.IP, s.Packets, formatBytes(s.Bytes)))
	}
	return strings.Join(out, "\n")
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(b)/(1<<10))
	}
	return fmt.Sprintf("%d B", b)
}

func formatBps(bps float64) string {
	if bps >= 1e6 {
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	}
	if bps >= 1e3 {
		return fmt.Sprintf("%.2f Kbps", bps/1e3)
	}
	return fmt.Sprintf("%.2f bps", bps)
}
