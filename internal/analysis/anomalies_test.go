package analysis

import (
	"fmt"
	"testing"
	"time"

	"sdnguard/internal/observability"
)

type fakeTrigger struct {
	engaged bool
	calls   []string
	counts  []int
}

func (f *fakeTrigger) Engaged() bool { return f.engaged }

func (f *fakeTrigger) Trigger(dst string, count int) {
	f.engaged = true
	f.calls = append(f.calls, dst)
	f.counts = append(f.counts, count)
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newMonitor(trig Trigger) *RateWindowMonitor {
	return NewRateWindowMonitor(DefaultConfig(), trig, observability.Discard())
}

// feed observes n packets to dst, ticking at the given time after each one.
func feed(m *RateWindowMonitor, dst string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		m.Observe(dst)
		m.Tick(at)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	trig := &fakeTrigger{}
	m := newMonitor(trig)

	feed(m, "10.0.0.3", 100, t0)
	m.Observe("10.0.0.1")
	m.Tick(t0.Add(time.Second))

	if len(trig.calls) != 0 {
		t.Fatalf("expected no trigger at exactly the threshold, got %v", trig.calls)
	}
	report := m.LastWindow()
	if report.Counts["10.0.0.3"] != 100 {
		t.Fatalf("expected 100 packets in closed window, got %d", report.Counts["10.0.0.3"])
	}
}

func TestTriggerAboveThreshold(t *testing.T) {
	trig := &fakeTrigger{}
	m := newMonitor(trig)

	feed(m, "10.0.0.3", 101, t0.Add(500*time.Millisecond))
	// The evaluating event counts towards the closing window.
	m.Observe("10.0.0.1")
	m.Tick(t0.Add(1500 * time.Millisecond))

	if len(trig.calls) != 1 || trig.calls[0] != "10.0.0.3" || trig.counts[0] != 101 {
		t.Fatalf("unexpected trigger calls: %v %v", trig.calls, trig.counts)
	}
	if got := m.LastWindow().Triggered; got != "10.0.0.3" {
		t.Fatalf("expected triggered destination in report, got %q", got)
	}
}

func TestWindowResetsEvenWithoutTrigger(t *testing.T) {
	trig := &fakeTrigger{}
	m := newMonitor(trig)

	feed(m, "10.0.0.3", 60, t0)
	m.Tick(t0.Add(time.Second))

	counts, start := m.Counts()
	if len(counts) != 0 {
		t.Fatalf("expected counters cleared, got %v", counts)
	}
	if !start.Equal(t0.Add(time.Second)) {
		t.Fatalf("expected window start reset to evaluation time, got %v", start)
	}

	// 60 + 60 across two windows never triggers.
	feed(m, "10.0.0.3", 60, t0.Add(1500*time.Millisecond))
	m.Tick(t0.Add(2 * time.Second))
	if len(trig.calls) != 0 {
		t.Fatalf("burst split across windows must not trigger, got %v", trig.calls)
	}
}

func TestNoEvaluationBeforeWindowElapses(t *testing.T) {
	trig := &fakeTrigger{}
	m := newMonitor(trig)

	feed(m, "10.0.0.3", 500, t0.Add(999*time.Millisecond))
	if len(trig.calls) != 0 {
		t.Fatalf("expected no evaluation inside the window")
	}
	counts, _ := m.Counts()
	if counts["10.0.0.3"] != 500 {
		t.Fatalf("expected 500 open-window packets, got %d", counts["10.0.0.3"])
	}
}

func TestLatchAllowsOnlyOneTrigger(t *testing.T) {
	trig := &fakeTrigger{}
	m := newMonitor(trig)

	for w := 0; w < 3; w++ {
		start := t0.Add(time.Duration(w) * time.Second)
		feed(m, "10.0.0.2", 150, start)
		feed(m, "10.0.0.3", 150, start)
	}
	m.Tick(t0.Add(3 * time.Second))

	if len(trig.calls) != 1 {
		t.Fatalf("expected exactly one trigger over the process lifetime, got %v", trig.calls)
	}
	// First offender in first-seen order wins.
	if trig.calls[0] != "10.0.0.2" {
		t.Fatalf("expected 10.0.0.2 to trigger, got %s", trig.calls[0])
	}
}

func TestEngagedLatchSuppressesTrigger(t *testing.T) {
	trig := &fakeTrigger{engaged: true}
	m := newMonitor(trig)

	feed(m, "10.0.0.3", 200, t0)
	m.Tick(t0.Add(time.Second))

	if len(trig.calls) != 0 {
		t.Fatalf("expected no trigger once latched, got %v", trig.calls)
	}
	alerts := m.GetRecentAlerts(5)
	if len(alerts) != 1 || alerts[0].Triggered {
		t.Fatalf("expected one non-triggering alert, got %+v", alerts)
	}
}

func TestAlertHistoryIsBounded(t *testing.T) {
	trig := &fakeTrigger{engaged: true}
	cfg := DefaultConfig()
	cfg.Threshold = 1
	cfg.MaxAlerts = 3
	m := NewRateWindowMonitor(cfg, trig, observability.Discard())

	for i := 0; i < 5; i++ {
		feed(m, fmt.Sprintf("10.0.1.%d", i), 3, t0.Add(time.Duration(i)*time.Second))
	}
	m.Tick(t0.Add(5 * time.Second))

	alerts := m.GetRecentAlerts(10)
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	if alerts[2].Destination != "10.0.1.4" {
		t.Fatalf("expected newest alert last, got %s", alerts[2].Destination)
	}
}
