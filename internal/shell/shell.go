// Package shell runs external commands (ovs-vsctl, ovs-ofctl, raw queue
// lines) under a per-call timeout.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"sdnguard/internal/observability"
)

// ErrTimeout is returned when a command outlives the runner's timeout.
var ErrTimeout = errors.New("shell: command timed out")

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	Timeout time.Duration
	Shell   string // interpreter for RunLine, default /bin/sh
	obs     observability.Observer
}

func NewExec(timeout time.Duration, obs observability.Observer) *Exec {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Exec{Timeout: timeout, Shell: "/bin/sh", obs: obs}
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	/* #nosec */
	cmd := exec.CommandContext(ctx, name, args...)
	// Children of a killed shell can hold the output pipe open.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()

	e.obs.LogDebug("exec", observability.F("cmd", name), observability.F("args", strings.Join(args, " ")))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%s: %w after %s", name, ErrTimeout, e.Timeout)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// RunLine hands line to the shell interpreter.
func RunLine(ctx context.Context, r Runner, shell, line string) ([]byte, error) {
	if shell == "" {
		shell = "/bin/sh"
	}
	return r.Run(ctx, shell, "-c", line)
}

var _ Runner = (*Exec)(nil)
