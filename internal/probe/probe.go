// Package probe checks whether a migration took effect on the switch.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/shell"
)

// Result is the outcome of one check.
type Result struct {
	Status  models.MigrationStatus // MigrationVerified or MigrationFailed
	Switch  string
	Port    string
	Ports   []string
	Raw     string // full query output
	Err     error
	Latency time.Duration
}

// Diagnostic renders the failure detail stored on the migration record.
func (r Result) Diagnostic() string {
	if r.Status == models.MigrationVerified {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "port %s not found on %s", r.Port, r.Switch)
	if r.Err != nil {
		fmt.Fprintf(&b, ": %v", r.Err)
	}
	if raw := strings.TrimSpace(r.Raw); raw != "" {
		fmt.Fprintf(&b, "\n%s", raw)
	}
	return b.String()
}

// OVSProbe lists switch ports with ovs-vsctl.
type OVSProbe struct {
	runner shell.Runner
	vsctl  string
	obs    observability.Observer
}

func NewOVSProbe(runner shell.Runner, vsctl string, obs observability.Observer) *OVSProbe {
	if vsctl == "" {
		vsctl = "ovs-vsctl"
	}
	return &OVSProbe{runner: runner, vsctl: vsctl, obs: obs}
}

// Check is Verified iff expectedPort is one of the ports attached to sw.
// There is no retry.
func (p *OVSProbe) Check(ctx context.Context, sw, expectedPort string) Result {
	start := time.Now()
	out, err := p.runner.Run(ctx, p.vsctl, "list-ports", sw)
	res := Result{
		Status:  models.MigrationFailed,
		Switch:  sw,
		Port:    expectedPort,
		Ports:   ParsePorts(out),
		Raw:     string(out),
		Err:     err,
		Latency: time.Since(start),
	}
	p.obs.ObserveLatency(observability.ProbeLatency, res.Latency.Seconds())

	if err == nil {
		for _, port := range res.Ports {
			if port == expectedPort {
				res.Status = models.MigrationVerified
				break
			}
		}
	}

	fields := []observability.Field{
		observability.F("switch", sw),
		observability.F("port", expectedPort),
		observability.F("ports", strings.Join(res.Ports, ",")),
	}
	if res.Status == models.MigrationVerified {
		p.obs.LogInfo("probe_verified", fields...)
	} else {
		p.obs.LogError("probe_failed", err, fields...)
	}
	return res
}

// ParsePorts splits list-ports output into port names.
func ParsePorts(out []byte) []string {
	var ports []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			ports = append(ports, name)
		}
	}
	return ports
}
