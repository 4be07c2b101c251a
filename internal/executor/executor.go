// Package executor drains remediation batches and applies them to the
// network environment.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
)

// BatchRecorder persists finished batch reports.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, report models.BatchReport) error
}

// Option customises an Executor.
type Option func(*Executor)

// WithRecorder persists every non-empty batch.
func WithRecorder(r BatchRecorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithHistory sets how many batch reports are kept in memory.
func WithHistory(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

// Executor polls a queue and applies each line in order. A failing line is
// reported and the batch goes on.
type Executor struct {
	queue      cmdqueue.Consumer
	env        Environment
	obs        observability.Observer
	recorder   BatchRecorder
	interval   time.Duration
	maxHistory int

	mu      sync.Mutex
	history []models.BatchReport
}

func New(queue cmdqueue.Consumer, env Environment, obs observability.Observer, opts ...Option) *Executor {
	e := &Executor{
		queue:      queue,
		env:        env,
		obs:        obs,
		interval:   time.Second,
		maxHistory: 50,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run polls until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.obs.LogInfo("executor_started", observability.F("interval", e.interval))
	for {
		select {
		case <-ctx.Done():
			e.obs.LogInfo("executor_stopped")
			return nil
		case <-ticker.C:
			if _, err := e.PollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.obs.LogError("queue_poll_failed", err)
			}
		}
	}
}

// PollOnce drains the pending batch, if any. It returns nil when nothing was
// pending.
func (e *Executor) PollOnce(ctx context.Context) (*models.BatchReport, error) {
	report := models.BatchReport{ID: xid.New().String(), Source: "queue", Started: time.Now()}

	n, err := e.queue.Drain(ctx, func(entry cmdqueue.Entry) {
		report.Results = append(report.Results, e.execEntry(ctx, entry))
	})
	if n == 0 && err == nil {
		return nil, nil
	}
	e.finish(ctx, &report)
	return &report, err
}

// RunLines executes operator-supplied lines as one batch.
func (e *Executor) RunLines(ctx context.Context, source string, lines []string) models.BatchReport {
	report := models.BatchReport{ID: xid.New().String(), Source: source, Started: time.Now()}
	idx := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, err := cmdqueue.Parse(line)
		report.Results = append(report.Results, e.execEntry(ctx, cmdqueue.Entry{Index: idx, Text: line, Command: cmd, Err: err}))
		idx++
	}
	e.finish(ctx, &report)
	return report
}

func (e *Executor) finish(ctx context.Context, report *models.BatchReport) {
	report.Finished = time.Now()
	e.obs.ObserveLatency(observability.BatchDuration, report.Finished.Sub(report.Started).Seconds())
	e.obs.LogInfo("batch_done",
		observability.F("id", report.ID),
		observability.F("source", report.Source),
		observability.F("commands", len(report.Results)),
		observability.F("failed", report.Failed()))

	e.mu.Lock()
	e.history = append(e.history, *report)
	if len(e.history) > e.maxHistory {
		e.history = e.history[len(e.history)-e.maxHistory:]
	}
	e.mu.Unlock()

	if e.recorder != nil && len(report.Results) > 0 {
		if err := e.recorder.RecordBatch(ctx, *report); err != nil {
			e.obs.LogError("audit_batch_failed", err, observability.F("id", report.ID))
		}
	}
}

func (e *Executor) execEntry(ctx context.Context, entry cmdqueue.Entry) models.CommandResult {
	start := time.Now()
	res := models.CommandResult{Index: entry.Index, Line: entry.Text, Op: "invalid"}

	var out []byte
	err := entry.Err
	if err == nil {
		res.Op = OpName(entry.Command)
		out, err = e.Apply(ctx, entry.Command)
	}

	res.Output = strings.TrimSpace(string(out))
	res.Duration = time.Since(start)
	e.obs.IncCounter(observability.CommandsExecuted, 1)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		e.obs.IncCounter(observability.CommandsFailed, 1)
		e.obs.LogError("command_failed", err,
			observability.F("index", entry.Index),
			observability.F("line", entry.Text))
	} else {
		e.obs.LogDebug("command_ok",
			observability.F("index", entry.Index),
			observability.F("op", res.Op))
	}
	return res
}

// Apply runs one command against the environment.
func (e *Executor) Apply(ctx context.Context, cmd cmdqueue.Command) ([]byte, error) {
	switch c := cmd.(type) {
	case cmdqueue.SetLinkStatus:
		return nil, e.env.SetLinkStatus(ctx, c.A, c.B, c.Up)
	case cmdqueue.AttachLink:
		return nil, e.env.AttachLink(ctx, c.A, c.B, c.AIntf, c.BIntf)
	case cmdqueue.SetInterfaceUp:
		return nil, e.env.SetInterfaceUp(ctx, c.Node, c.Intf, c.Address, c.DefaultRoute)
	case cmdqueue.DeleteInterface:
		return nil, e.env.DeleteInterface(ctx, c.Node, c.Intf)
	case cmdqueue.DetachPort:
		return e.env.DetachPort(ctx, c.Switch, c.Port)
	case cmdqueue.DeleteLink:
		return nil, e.env.DeleteLink(ctx, c.Intf)
	case cmdqueue.ClearFlowTable:
		var (
			out  []byte
			errs []error
		)
		for _, sw := range c.Switches {
			o, err := e.env.ClearFlowTable(ctx, sw)
			out = append(out, o...)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sw, err))
			}
		}
		return out, errors.Join(errs...)
	case cmdqueue.RunShell:
		return e.env.RunShell(ctx, c.Text)
	default:
		return nil, fmt.Errorf("%w: %T", cmdqueue.ErrUnknownOp, cmd)
	}
}

// OpName is the short name of a command's operation.
func OpName(cmd cmdqueue.Command) string {
	switch cmd.(type) {
	case cmdqueue.SetLinkStatus:
		return "link-status"
	case cmdqueue.AttachLink:
		return "add-link"
	case cmdqueue.SetInterfaceUp:
		return "if-up"
	case cmdqueue.DeleteInterface:
		return "del-if"
	case cmdqueue.DetachPort:
		return "detach"
	case cmdqueue.DeleteLink:
		return "del-link"
	case cmdqueue.ClearFlowTable:
		return "del-flows"
	case cmdqueue.RunShell:
		return "shell"
	default:
		return "unknown"
	}
}

// History returns the retained batch reports, oldest first.
func (e *Executor) History() []models.BatchReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.BatchReport, len(e.history))
	copy(out, e.history)
	return out
}
