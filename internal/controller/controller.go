// Package controller wires the learning switch, the rate monitor and the
// migration coordinator into one southbound handler.
package controller

import (
	"context"
	"time"

	"sdnguard/internal/analysis"
	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/config"
	"sdnguard/internal/learning"
	"sdnguard/internal/migration"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/southbound"
	"sdnguard/internal/topology"
)

// Option customises a Controller.
type Option func(*options)

type options struct {
	recorder  migration.Recorder
	migration []migration.Option
	listener  []learning.Option
}

// WithRecorder persists the migration record.
func WithRecorder(r migration.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithMigrationOptions passes options through to the coordinator.
func WithMigrationOptions(opts ...migration.Option) Option {
	return func(o *options) { o.migration = append(o.migration, opts...) }
}

// WithListenerOptions passes options through to the packet listener.
func WithListenerOptions(opts ...learning.Option) Option {
	return func(o *options) { o.listener = append(o.listener, opts...) }
}

// Controller owns every piece of per-process state: bindings, window
// counters and the migration latch.
type Controller struct {
	cfg      *config.Config
	obs      observability.Observer
	topo     *topology.Topology
	table    *learning.Table
	stats    *analysis.TrafficStats
	monitor  *analysis.RateWindowMonitor
	coord    *migration.Coordinator
	listener *learning.Listener
	started  time.Time
}

func New(cfg *config.Config, obs observability.Observer, queue cmdqueue.Producer, prober migration.Prober, opts ...Option) (*Controller, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	topo, err := topology.New(cfg.Topology)
	if err != nil {
		return nil, err
	}

	migOpts := o.migration
	if o.recorder != nil {
		migOpts = append([]migration.Option{migration.WithRecorder(o.recorder)}, migOpts...)
	}
	coord := migration.NewCoordinator(
		migration.Config{
			Target:      Target(cfg),
			SettleDelay: cfg.Migration.SettleDelay,
		},
		topo, queue, prober, obs, migOpts...,
	)

	monitor := analysis.NewRateWindowMonitor(analysis.Config{
		Window:    cfg.Detection.Window,
		Threshold: cfg.Detection.Threshold,
		MaxAlerts: cfg.Detection.MaxAlerts,
	}, coord, obs)

	table := learning.NewTable()
	stats := analysis.NewTrafficStats()
	lopts := append([]learning.Option{learning.WithEventTime(), learning.WithPacketSink(stats)}, o.listener...)

	return &Controller{
		cfg:      cfg,
		obs:      obs,
		topo:     topo,
		table:    table,
		stats:    stats,
		monitor:  monitor,
		coord:    coord,
		listener: learning.NewListener(table, monitor, obs, lopts...),
		started:  time.Now(),
	}, nil
}

// Target is the migration target described by cfg.
func Target(cfg *config.Config) migration.Target {
	return migration.Target{
		Host:       cfg.Migration.Host,
		FromSwitch: cfg.Migration.FromSwitch,
		ToSwitch:   cfg.Migration.ToSwitch,
		NewPort:    cfg.Migration.NewPort,
	}
}

// Run processes events on the calling goroutine until ctx is done or events
// is closed.
func (c *Controller) Run(ctx context.Context, events <-chan southbound.Event) error {
	c.obs.LogInfo("controller_started",
		observability.F("threshold", c.cfg.Detection.Threshold),
		observability.F("window", c.cfg.Detection.Window),
		observability.F("target", c.cfg.Migration.Host))
	return southbound.Dispatch(ctx, events, c.listener)
}

func (c *Controller) Handler() southbound.Handler          { return c.listener }
func (c *Controller) Stats() *analysis.TrafficStats        { return c.stats }
func (c *Controller) Monitor() *analysis.RateWindowMonitor { return c.monitor }
func (c *Controller) Topology() *topology.Topology         { return c.topo }

// Status is a point-in-time view for the API and dashboard.
type Status struct {
	Latch        bool                    `json:"latch"`
	State        string                  `json:"state"`
	Migration    *models.MigrationRecord `json:"migration,omitempty"`
	WindowStart  time.Time               `json:"window_start"`
	WindowCounts map[string]int          `json:"window_counts"`
	Bindings     int                     `json:"bindings"`
	Totals       analysis.Totals         `json:"totals"`
	Alerts       []analysis.Alert        `json:"alerts"`
	Uptime       string                  `json:"uptime"`
}

func (c *Controller) Status() Status {
	rec, state, latch := c.coord.Snapshot()
	counts, start := c.monitor.Counts()
	return Status{
		Latch:        latch,
		State:        state.String(),
		Migration:    rec,
		WindowStart:  start,
		WindowCounts: counts,
		Bindings:     c.table.Len(),
		Totals:       c.stats.GetTotals(),
		Alerts:       c.monitor.GetRecentAlerts(c.cfg.Detection.MaxAlerts),
		Uptime:       time.Since(c.started).Truncate(time.Second).String(),
	}
}

func (c *Controller) Bindings() []learning.Binding {
	return c.table.Snapshot()
}

// Plan is the remediation the controller would enqueue right now.
func (c *Controller) Plan() (migration.Plan, error) {
	return migration.BuildPlan(c.topo, Target(c.cfg))
}
