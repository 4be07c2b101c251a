package analysis

import (
	"fmt"
	"sync"
	"time"

	"sdnguard/internal/observability"
)

// AnomalyType represents the type of anomaly detected.
type AnomalyType string

const (
	AnomalyDoS AnomalyType = "POSSIBLE_DOS"
)

// Config holds configuration for the rate window monitor.
type Config struct {
	Window    time.Duration // Fixed, non-sliding window length
	Threshold int           // Packets per window per destination; strictly greater triggers
	MaxAlerts int           // Alert history size
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Window:    time.Second,
		Threshold: 100,
		MaxAlerts: 20,
	}
}

// Alert represents a destination that exceeded the threshold in a window.
type Alert struct {
	Type        AnomalyType
	Destination string
	Count       int
	Message     string
	Triggered   bool // true if this alert started the migration
	Timestamp   time.Time
}

// Trigger is the one-shot remediation guarded by a latch.
type Trigger interface {
	Engaged() bool
	Trigger(dst string, count int)
}

// WindowReport summarises one evaluated window.
type WindowReport struct {
	Start     time.Time
	End       time.Time
	Counts    map[string]int
	Offenders []string
	Triggered string
}

// RateWindowMonitor counts packets per destination over fixed windows.
//
// Evaluation happens inline from Tick, so a window is only closed when an
// event arrives after it expired. A burst split across a boundary is counted
// in two windows and can stay under the threshold in both.
type RateWindowMonitor struct {
	mu sync.Mutex

	config  Config
	trigger Trigger
	obs     observability.Observer

	counts      map[string]int
	order       []string // first-seen order within the window
	windowStart time.Time
	last        WindowReport

	// Alert History (circular buffer)
	alerts []Alert
}

// NewRateWindowMonitor creates a monitor firing trigger on threshold crossings.
func NewRateWindowMonitor(cfg Config, trigger Trigger, obs observability.Observer) *RateWindowMonitor {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 20
	}
	return &RateWindowMonitor{
		config:  cfg,
		trigger: trigger,
		obs:     obs,
		counts:  make(map[string]int),
		alerts:  make([]Alert, 0),
	}
}

// Observe counts one packet towards dst in the current window.
func (m *RateWindowMonitor) Observe(dst string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.counts[dst]; !seen {
		m.order = append(m.order, dst)
	}
	m.counts[dst]++
}

// Tick closes the window if it has expired at now. The first Tick opens the
// first window.
func (m *RateWindowMonitor) Tick(now time.Time) {
	m.mu.Lock()
	if m.windowStart.IsZero() {
		m.windowStart = now
	}
	if now.Sub(m.windowStart) < m.config.Window {
		m.mu.Unlock()
		return
	}

	report := WindowReport{
		Start:  m.windowStart,
		End:    now,
		Counts: m.counts,
	}
	for _, dst := range m.order {
		if m.counts[dst] > m.config.Threshold {
			report.Offenders = append(report.Offenders, dst)
		}
	}

	// Reset unconditionally, whether or not anything fires below.
	m.counts = make(map[string]int)
	m.order = nil
	m.windowStart = now
	m.mu.Unlock()

	m.obs.IncCounter(observability.WindowsTotal, 1)

	// The trigger may block (settle delay + probe), so it runs unlocked.
	for _, dst := range report.Offenders {
		count := report.Counts[dst]
		fire := !m.trigger.Engaged()

		m.obs.LogNotice("possible_dos",
			observability.F("destination", dst),
			observability.F("packets", count),
			observability.F("window", m.config.Window),
			observability.F("remediate", fire))

		if fire {
			m.trigger.Trigger(dst, count)
			report.Triggered = dst
		}
		m.addAlert(Alert{
			Type:        AnomalyDoS,
			Destination: dst,
			Count:       count,
			Message:     fmt.Sprintf("POSSIBLE DoS attack on %s: %d packets in %s", dst, count, m.config.Window),
			Triggered:   fire,
			Timestamp:   now,
		})
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
}

// addAlert adds an alert to the history (circular buffer).
func (m *RateWindowMonitor) addAlert(alert Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = append(m.alerts, alert)

	// Keep only last MaxAlerts
	if len(m.alerts) > m.config.MaxAlerts {
		m.alerts = m.alerts[len(m.alerts)-m.config.MaxAlerts:]
	}
}

// Counts returns a copy of the open window's counters and its start time.
func (m *RateWindowMonitor) Counts() (map[string]int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, m.windowStart
}

// LastWindow returns the report of the most recently closed window.
func (m *RateWindowMonitor) LastWindow() WindowReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// GetRecentAlerts returns the most recent alerts (thread-safe).
func (m *RateWindowMonitor) GetRecentAlerts(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.alerts) == 0 {
		return []Alert{}
	}

	// Return last N alerts (newest last)
	start := 0
	if len(m.alerts) > limit {
		start = len(m.alerts) - limit
	}

	// Make a copy to avoid race conditions
	result := make([]Alert, len(m.alerts)-start)
	copy(result, m.alerts[start:])

	return result
}
