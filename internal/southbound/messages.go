// Package southbound is the boundary between the controller and its switches.
// The wire protocol itself lives outside this module; here are the events the
// controller consumes, the messages it produces, and a few shims that feed
// frames from pcap captures so the controller can run without a real switch.
package southbound

import (
	"context"
	"time"
)

// OpenFlow 1.3 reserved values used by the controller.
const (
	PortFlood      uint32 = 0xfffffffb
	PortController uint32 = 0xfffffffd
	NoBuffer       uint32 = 0xffffffff
	MaxLenNoBuffer uint16 = 0xffff
)

// Action outputs a frame on Port. MaxLen only matters for PortController.
type Action struct {
	Port   uint32
	MaxLen uint16
}

// Match is an exact-match rule; zero fields are wildcards.
type Match struct {
	InPort uint32
	EthDst string
}

type FlowMod struct {
	Priority uint16
	Match    Match
	Actions  []Action
}

type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

// OutputPort returns the port of the first output action.
func (p PacketOut) OutputPort() uint32 {
	if len(p.Actions) == 0 {
		return 0
	}
	return p.Actions[0].Port
}

// Datapath is a connected switch.
type Datapath interface {
	ID() uint64
	SendFlowMod(FlowMod) error
	SendPacketOut(PacketOut) error
}

// Event is anything a switch delivers to the controller.
type Event interface {
	Datapath() Datapath
}

// SwitchFeatures arrives once per switch handshake.
type SwitchFeatures struct {
	DP Datapath
}

func (e SwitchFeatures) Datapath() Datapath { return e.DP }

// PacketIn carries a frame the switch had no rule for.
type PacketIn struct {
	DP       Datapath
	InPort   uint32
	BufferID uint32
	Data     []byte
	Received time.Time
}

func (e PacketIn) Datapath() Datapath { return e.DP }

// Handler reacts to southbound events.
type Handler interface {
	HandleSwitchFeatures(SwitchFeatures)
	HandlePacketIn(PacketIn)
}

// Dispatch feeds events to h one at a time on the calling goroutine. Each
// event is fully handled before the next is read. It returns when ctx is done
// or events is closed.
func Dispatch(ctx context.Context, events <-chan Event, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case SwitchFeatures:
				h.HandleSwitchFeatures(e)
			case PacketIn:
				h.HandlePacketIn(e)
			}
		}
	}
}
