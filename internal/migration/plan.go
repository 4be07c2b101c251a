package migration

import (
	"fmt"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/models"
	"sdnguard/internal/topology"
)

// Target names the host to move and the switches it moves between.
type Target struct {
	Host       string
	FromSwitch string
	ToSwitch   string
	// NewPort overrides the switch-side interface name of the new link.
	// Empty takes the next free interface on ToSwitch.
	NewPort string
}

// Plan is the ordered remediation for one Target.
type Plan struct {
	Target   Target
	From     models.AttachmentPoint
	To       models.AttachmentPoint
	Commands []cmdqueue.Command
}

// BuildPlan derives the seven-step move from the current link set:
//
//  1. take the host's link to the old switch down
//  2. link the host to the new switch
//  3. bring the new host interface up with the host address and default route
//  4. delete the old host interface
//  5. detach the old port from the old switch
//  6. drop the old link from the link set
//  7. clear the flow tables of both switches
func BuildPlan(topo *topology.Topology, t Target) (Plan, error) {
	host, ok := topo.Host(t.Host)
	if !ok {
		return Plan{}, fmt.Errorf("plan: unknown host %q", t.Host)
	}
	if !topo.IsSwitch(t.FromSwitch) || !topo.IsSwitch(t.ToSwitch) {
		return Plan{}, fmt.Errorf("plan: %s and %s must both be switches", t.FromSwitch, t.ToSwitch)
	}
	if t.FromSwitch == t.ToSwitch {
		return Plan{}, fmt.Errorf("plan: host %s is already on %s", t.Host, t.ToSwitch)
	}

	old, err := topo.Between(host.Name, t.FromSwitch)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}

	hostIntf := topo.NextInterface(host.Name)
	swIntf := t.NewPort
	if swIntf == "" {
		swIntf = topo.NextInterface(t.ToSwitch)
	}

	return Plan{
		Target: t,
		From:   models.AttachmentPoint{Switch: t.FromSwitch, Port: old.BIntf},
		To:     models.AttachmentPoint{Switch: t.ToSwitch, Port: swIntf},
		Commands: []cmdqueue.Command{
			cmdqueue.SetLinkStatus{A: host.Name, B: t.FromSwitch, Up: false},
			cmdqueue.AttachLink{A: host.Name, B: t.ToSwitch, AIntf: hostIntf, BIntf: swIntf},
			cmdqueue.SetInterfaceUp{Node: host.Name, Intf: hostIntf, Address: host.Address, DefaultRoute: true},
			cmdqueue.DeleteInterface{Node: host.Name, Intf: old.AIntf},
			cmdqueue.DetachPort{Switch: t.FromSwitch, Port: old.BIntf},
			cmdqueue.DeleteLink{Intf: old.BIntf},
			cmdqueue.ClearFlowTable{Switches: []string{t.FromSwitch, t.ToSwitch}},
		},
	}, nil
}

// Lines renders the plan as queue lines.
func (p Plan) Lines() ([]string, error) {
	return cmdqueue.EncodeAll(p.Commands)
}
