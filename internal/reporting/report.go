package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sdnguard/internal/analysis"
	"sdnguard/internal/models"
)

// Incident is everything the controller knows at shutdown.
type Incident struct {
	Record *models.MigrationRecord // nil when nothing triggered
	Stats  *analysis.TrafficStats
	Alerts []analysis.Alert
}

// GenerateIncidentReport writes a report of the migration, its plan and the
// traffic that led to it into dir. Currently supports "html" format.
func GenerateIncidentReport(dir string, in Incident, format string) (string, error) {
	if format != "html" {
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	now := time.Now()
	timestamp := now.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("incident_%s.html", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Gather data
	totals := in.Stats.GetTotals()
	topDst := in.Stats.GetTopDestinations(10)
	topSrc := in.Stats.GetTopTalkers(10)
	esc := html.EscapeString

	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>sdnguard Incident Report - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .alert { color: #d9534f; font-weight: bold; }
        .ok { color: #2e7d32; font-weight: bold; }
        pre { background: #f7f7f7; padding: 10px; }
    </style>
</head>
<body>
    <h1>sdnguard Incident Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>Frames Seen:</strong> %d (%d IPv4)</p>
        <p><strong>Total Data Transferred:</strong> %s</p>
    </div>

    <h2>Migration</h2>
`, timestamp, now.Format(time.RFC1123), totals.Frames, totals.IPv4Frames, formatBytes(in.Stats.GetTotalDataTransferred()))

	rec := in.Record
	if rec == nil {
		b.WriteString("    <p>No migration was triggered during this session.</p>\n")
	} else {
		class := "alert"
		if rec.Status == models.MigrationVerified {
			class = "ok"
		}
		fmt.Fprintf(&b, `    <table>
        <tbody>
            <tr><th>ID</th><td>%s</td></tr>
            <tr><th>Status</th><td class="%s">%s</td></tr>
            <tr><th>Host</th><td>%s</td></tr>
            <tr><th>Triggering Destination</th><td>%s (%d packets)</td></tr>
            <tr><th>From</th><td>%s %s</td></tr>
            <tr><th>To</th><td>%s %s</td></tr>
            <tr><th>Triggered</th><td>%s</td></tr>
            <tr><th>Verified</th><td>%s</td></tr>
        </tbody>
    </table>
`, esc(rec.ID), class, rec.Status, esc(rec.Host), esc(rec.Destination), rec.PacketCount,
			esc(rec.From.Switch), esc(rec.From.Port), esc(rec.To.Switch), esc(rec.To.Port),
			rec.TriggeredAt.Format(time.RFC3339), formatTime(rec.VerifiedAt))

		b.WriteString("    <h2>Plan</h2>\n    <pre>")
		for _, line := range rec.Plan {
			b.WriteString(esc(line) + "\n")
		}
		b.WriteString("</pre>\n")

		if rec.Diagnostic != "" {
			fmt.Fprintf(&b, "    <h2>Diagnostic</h2>\n    <pre class=\"alert\">%s</pre>\n", esc(rec.Diagnostic))
		}
	}

	b.WriteString(`
    <h2>Top 10 Destinations</h2>
    <table>
        <thead>
            <tr>
                <th>IP Address</th>
                <th>Packets</th>
                <th>Data Transferred (Bytes)</th>
            </tr>
        </thead>
        <tbody>
`)
	for _, dst := range topDst {
		fmt.Fprintf(&b, "            <tr><td>%s</td><td>%d</td><td>%d</td></tr>\n", esc(dst.IP), dst.Packets, dst.Bytes)
	}

	b.WriteString(`        </tbody>
    </table>

    <h2>Top 10 Sources</h2>
    <table>
        <thead>
            <tr>
                <th>IP Address</th>
                <th>Packets</th>
                <th>Data Sent (Bytes)</th>
            </tr>
        </thead>
        <tbody>
`)
	for _, src := range topSrc {
		fmt.Fprintf(&b, "            <tr><td>%s</td><td>%d</td><td>%d</td></tr>\n", esc(src.IP), src.Packets, src.Bytes)
	}

	b.WriteString(`        </tbody>
    </table>

    <h2>Rate Alerts</h2>
    <table>
        <thead>
            <tr>
                <th>Time</th>
                <th>Type</th>
                <th>Destination</th>
                <th>Message</th>
            </tr>
        </thead>
        <tbody>
`)
	if len(in.Alerts) == 0 {
		b.WriteString("            <tr><td colspan=\"4\">No alerts triggered during this session.</td></tr>\n")
	} else {
		for _, alert := range in.Alerts {
			fmt.Fprintf(&b, "            <tr><td>%s</td><td class=\"alert\">%s</td><td>%s</td><td>%s</td></tr>\n",
				alert.Timestamp.Format("15:04:05"), alert.Type, esc(alert.Destination), esc(alert.Message))
		}
	}

	b.WriteString(`        </tbody>
    </table>
</body>
</html>`)

	if _, err := file.WriteString(b.String()); err != nil {
		return "", err
	}

	return filename, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
