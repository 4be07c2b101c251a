package learning

import (
	"time"

	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/southbound"
)

// RateObserver receives destination addresses and is ticked on every event.
type RateObserver interface {
	Observe(dst string)
	Tick(now time.Time)
}

// PacketSink gets a copy of every decoded frame, e.g. for traffic stats.
type PacketSink interface {
	ProcessPacket(pkt models.PacketData)
}

// Listener is the controller's southbound.Handler.
type Listener struct {
	table *Table
	rates RateObserver
	sink  PacketSink
	obs   observability.Observer
	clock func() time.Time

	// eventTime makes windows follow PacketIn timestamps, so a replayed
	// capture is evaluated with its recorded timing.
	eventTime bool
}

type Option func(*Listener)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(l *Listener) { l.clock = clock }
}

// WithEventTime uses PacketIn.Received as the current time when it is set.
func WithEventTime() Option {
	return func(l *Listener) { l.eventTime = true }
}

// WithPacketSink forwards every decoded frame to sink.
func WithPacketSink(sink PacketSink) Option {
	return func(l *Listener) { l.sink = sink }
}

func NewListener(table *Table, rates RateObserver, obs observability.Observer, opts ...Option) *Listener {
	l := &Listener{
		table: table,
		rates: rates,
		obs:   obs,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// HandleSwitchFeatures installs the table-miss rule sending unmatched
// traffic to the controller.
func (l *Listener) HandleSwitchFeatures(ev southbound.SwitchFeatures) {
	fm := southbound.FlowMod{
		Priority: 0,
		Actions: []southbound.Action{{
			Port:   southbound.PortController,
			MaxLen: southbound.MaxLenNoBuffer,
		}},
	}
	if err := ev.DP.SendFlowMod(fm); err != nil {
		l.obs.LogError("table_miss_install_failed", err, observability.F("dpid", ev.DP.ID()))
		return
	}
	l.obs.LogInfo("switch_connected", observability.F("dpid", ev.DP.ID()))
}

// HandlePacketIn learns the source, counts the destination, advances the
// rate window and emits exactly one PacketOut.
func (l *Listener) HandlePacketIn(ev southbound.PacketIn) {
	dpid := ev.DP.ID()
	now := l.clock()
	if l.eventTime && !ev.Received.IsZero() {
		now = ev.Received
	}

	pkt, err := southbound.Decode(ev.Data)
	pkt.Timestamp = now
	pkt.DatapathID = dpid
	pkt.InPort = ev.InPort

	l.obs.IncCounter(observability.PacketsTotal, 1)
	if err == nil {
		l.table.Learn(dpid, pkt.SrcMAC, ev.InPort)
		l.obs.SetGauge(observability.BindingsGauge, float64(l.table.Len()))
	} else {
		l.obs.LogDebug("frame_undecodable", observability.F("dpid", dpid), observability.F("len", len(ev.Data)))
	}

	if pkt.HasNetworkLayer() {
		l.rates.Observe(pkt.DstIP)
	} else {
		l.obs.IncCounter(observability.PacketsUnparsedTotal, 1)
	}
	if l.sink != nil {
		l.sink.ProcessPacket(pkt)
	}

	l.rates.Tick(now)

	l.forward(ev, pkt)
}

func (l *Listener) forward(ev southbound.PacketIn, pkt models.PacketData) {
	out := southbound.PortFlood
	if pkt.DstMAC != "" {
		if port, ok := l.table.Lookup(ev.DP.ID(), pkt.DstMAC); ok {
			out = port
		}
	}

	var data []byte
	if ev.BufferID == southbound.NoBuffer {
		data = ev.Data
	}

	po := southbound.PacketOut{
		BufferID: ev.BufferID,
		InPort:   ev.InPort,
		Actions:  []southbound.Action{{Port: out}},
		Data:     data,
	}
	if err := ev.DP.SendPacketOut(po); err != nil {
		l.obs.LogError("packet_out_failed", err, observability.F("dpid", ev.DP.ID()), observability.F("port", out))
	}
}

var _ southbound.Handler = (*Listener)(nil)
