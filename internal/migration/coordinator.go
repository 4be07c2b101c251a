// Package migration moves a host under attack to another switch, once.
package migration

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/probe"
	"sdnguard/internal/topology"
)

//go:generate mockgen -destination "mock_migration_test.go" -package $GOPACKAGE -write_package_comment=false sdnguard/internal/migration Enqueuer,Prober,Recorder

// State is the coordinator's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateEnqueuing
	StateEnqueued
	StateVerifying
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnqueuing:
		return "enqueuing"
	case StateEnqueued:
		return "enqueued"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Enqueuer hands a plan to whoever applies it.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, cmds []cmdqueue.Command) error
}

// Prober confirms the new attachment point.
type Prober interface {
	Check(ctx context.Context, sw, expectedPort string) probe.Result
}

// Recorder persists the finished record.
type Recorder interface {
	RecordMigration(ctx context.Context, rec models.MigrationRecord) error
}

// Config is the coordinator's fixed parameters.
type Config struct {
	Target      Target
	SettleDelay time.Duration
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithSleep replaces time.Sleep for the settle delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRecorder persists the record once it reaches a terminal status.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// Coordinator runs the one-shot migration. The latch is set before any I/O
// and never cleared.
type Coordinator struct {
	cfg      Config
	topo     *topology.Topology
	queue    Enqueuer
	prober   Prober
	recorder Recorder
	obs      observability.Observer
	sleep    func(time.Duration)
	now      func() time.Time

	mu      sync.Mutex
	engaged bool
	state   State
	record  *models.MigrationRecord
}

func NewCoordinator(cfg Config, topo *topology.Topology, queue Enqueuer, prober Prober, obs observability.Observer, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		topo:   topo,
		queue:  queue,
		prober: prober,
		obs:    obs,
		sleep:  time.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engaged reports whether the latch has been set.
func (c *Coordinator) Engaged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engaged
}

// Trigger starts the migration of the configured target because dst received
// count packets in one window. It blocks through the settle delay and the
// probe. Calls after the first are ignored.
func (c *Coordinator) Trigger(dst string, count int) {
	c.mu.Lock()
	if c.engaged {
		c.mu.Unlock()
		return
	}
	c.engaged = true
	c.record = &models.MigrationRecord{
		ID:          xid.New().String(),
		Host:        c.cfg.Target.Host,
		Destination: dst,
		PacketCount: count,
		Status:      models.MigrationPending,
		TriggeredAt: c.now(),
	}
	c.mu.Unlock()

	c.obs.SetGauge(observability.LatchGauge, 1)
	c.obs.IncCounter(observability.MigrationsTriggered, 1)
	c.setState(StateEnqueuing, models.MigrationPending)
	c.obs.LogNotice("migration_triggered",
		observability.F("host", c.cfg.Target.Host),
		observability.F("destination", dst),
		observability.F("packets", count))

	// A triggered migration runs to completion; shutdown does not cancel it.
	ctx := context.Background()

	plan, err := BuildPlan(c.topo, c.cfg.Target)
	if err != nil {
		c.fail(ctx, "plan", err, err.Error())
		return
	}
	lines, err := plan.Lines()
	if err != nil {
		c.fail(ctx, "plan", err, err.Error())
		return
	}
	c.update(func(r *models.MigrationRecord) {
		r.From = plan.From
		r.To = plan.To
		r.Plan = lines
	})

	if err := c.queue.EnqueueBatch(ctx, plan.Commands); err != nil {
		c.fail(ctx, "enqueue", err, err.Error())
		return
	}
	c.obs.IncCounter(observability.BatchesEnqueued, 1)
	c.setState(StateEnqueued, models.MigrationEnqueued)
	c.obs.LogInfo("migration_enqueued", observability.F("commands", len(plan.Commands)))

	c.sleep(c.cfg.SettleDelay)

	c.setState(StateVerifying, models.MigrationVerifying)
	res := c.prober.Check(ctx, plan.To.Switch, plan.To.Port)
	if res.Status != models.MigrationVerified {
		c.fail(ctx, "verify", res.Err, res.Diagnostic())
		return
	}

	c.update(func(r *models.MigrationRecord) { r.VerifiedAt = c.now() })
	c.setState(StateVerified, models.MigrationVerified)
	c.obs.LogNotice("migration_verified",
		observability.F("host", c.cfg.Target.Host),
		observability.F("switch", plan.To.Switch),
		observability.F("port", plan.To.Port))
	c.persist(ctx)
}

func (c *Coordinator) fail(ctx context.Context, stage string, err error, diagnostic string) {
	c.update(func(r *models.MigrationRecord) {
		r.Diagnostic = diagnostic
		r.VerifiedAt = c.now()
	})
	c.setState(StateFailed, models.MigrationFailed)
	c.obs.LogError("migration_failed", err,
		observability.F("stage", stage),
		observability.F("host", c.cfg.Target.Host),
		observability.F("diagnostic", diagnostic))
	c.persist(ctx)
}

func (c *Coordinator) persist(ctx context.Context) {
	if c.recorder == nil {
		return
	}
	rec, _, _ := c.Snapshot()
	if rec == nil || !rec.Status.Terminal() {
		return
	}
	if err := c.recorder.RecordMigration(ctx, *rec); err != nil {
		c.obs.LogError("audit_record_failed", err, observability.F("id", rec.ID))
	}
}

func (c *Coordinator) setState(s State, status models.MigrationStatus) {
	c.mu.Lock()
	c.state = s
	if c.record != nil {
		c.record.Status = status
	}
	c.mu.Unlock()
	c.obs.SetGauge(observability.MigrationStateGauge, float64(s))
}

func (c *Coordinator) update(fn func(*models.MigrationRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record != nil {
		fn(c.record)
	}
}

// Snapshot returns a copy of the record (nil before any trigger), the
// current state and the latch.
func (c *Coordinator) Snapshot() (*models.MigrationRecord, State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil {
		return nil, c.state, c.engaged
	}
	rec := *c.record
	rec.Plan = append([]string(nil), c.record.Plan...)
	return &rec, c.state, c.engaged
}
