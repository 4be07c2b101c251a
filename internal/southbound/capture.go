package southbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// CaptureSource reads frames from a live interface (typically a mirror port)
// and presents them as PacketIn events from one datapath. It is also that
// datapath: with Inject set, PacketOut frames are written back to the wire.
type CaptureSource struct {
	iface  string
	dpid   uint64
	inPort uint32
	handle *pcap.Handle

	Inject bool
}

// OpenCapture opens iface in promiscuous mode with an optional BPF filter.
func OpenCapture(iface string, dpid uint64, inPort uint32, filter string) (*CaptureSource, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("could not open handle on %s: %w", iface, err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("could not set BPF filter: %w", err)
		}
	}
	return &CaptureSource{iface: iface, dpid: dpid, inPort: inPort, handle: handle}, nil
}

func (c *CaptureSource) ID() uint64 { return c.dpid }

// SendFlowMod is accepted and ignored; a raw interface has no flow table.
func (c *CaptureSource) SendFlowMod(FlowMod) error { return nil }

func (c *CaptureSource) SendPacketOut(po PacketOut) error {
	if !c.Inject || len(po.Data) == 0 {
		return nil
	}
	return c.handle.WritePacketData(po.Data)
}

// Run streams captured frames into out until ctx is done.
func (c *CaptureSource) Run(ctx context.Context, out chan<- Event) error {
	if err := send(ctx, out, SwitchFeatures{DP: c}); err != nil {
		return err
	}

	src := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	in := src.Packets()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-in:
			if !ok {
				return nil
			}
			ev := PacketIn{
				DP:       c,
				InPort:   c.inPort,
				BufferID: NoBuffer,
				Data:     packet.Data(),
				Received: packet.Metadata().Timestamp,
			}
			if err := send(ctx, out, ev); err != nil {
				return err
			}
		}
	}
}

func (c *CaptureSource) Close() {
	c.handle.Close()
}

var _ Datapath = (*CaptureSource)(nil)
