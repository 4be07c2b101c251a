package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromObs backs Observer with a Logger and Prometheus collectors.
type PromObs struct {
	*Logger

	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the sdnguard collectors on reg.
func NewPromObs(reg prometheus.Registerer, logger *Logger) *PromObs {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		Logger: logger,
		counters: map[string]prometheus.Counter{
			PacketsTotal:         counter(PacketsTotal, "PacketIn events processed by the controller."),
			PacketsUnparsedTotal: counter(PacketsUnparsedTotal, "PacketIn events without an IPv4 payload."),
			WindowsTotal:         counter(WindowsTotal, "Rate windows evaluated."),
			MigrationsTriggered:  counter(MigrationsTriggered, "Migrations triggered by the rate monitor."),
			BatchesEnqueued:      counter(BatchesEnqueued, "Remediation batches written to the command queue."),
			CommandsExecuted:     counter(CommandsExecuted, "Queue commands executed by the executor."),
			CommandsFailed:       counter(CommandsFailed, "Queue commands that returned an error."),
		},
		gauges: map[string]prometheus.Gauge{
			BindingsGauge:       gauge(BindingsGauge, "Learned (switch, mac) bindings."),
			MigrationStateGauge: gauge(MigrationStateGauge, "Coordinator state (0 idle .. 5 failed)."),
			LatchGauge:          gauge(LatchGauge, "1 once a migration has been triggered."),
		},
		histos: map[string]prometheus.Observer{
			ProbeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    ProbeLatency,
				Help:    "Duration of the verification port query.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			}),
			BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    BatchDuration,
				Help:    "Time to execute one queued batch.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
		},
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	for _, h := range p.histos {
		reg.MustRegister(h.(prometheus.Collector))
	}
	return p
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

var _ Observer = (*PromObs)(nil)
