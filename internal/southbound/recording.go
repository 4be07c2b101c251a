package southbound

import (
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// RecordingDatapath is an in-process switch stand-in. It keeps every message
// the controller sends and, when given a writer, appends PacketOut frames to
// it in pcap format.
type RecordingDatapath struct {
	mu         sync.Mutex
	id         uint64
	w          *pcapgo.Writer
	flowMods   []FlowMod
	packetOuts []PacketOut
}

// NewRecordingDatapath creates a datapath; w may be nil.
func NewRecordingDatapath(id uint64, w io.Writer) (*RecordingDatapath, error) {
	d := &RecordingDatapath{id: id}
	if w != nil {
		pw := pcapgo.NewWriter(w)
		if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
			return nil, err
		}
		d.w = pw
	}
	return d, nil
}

func (d *RecordingDatapath) ID() uint64 { return d.id }

func (d *RecordingDatapath) SendFlowMod(fm FlowMod) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flowMods = append(d.flowMods, fm)
	return nil
}

func (d *RecordingDatapath) SendPacketOut(po PacketOut) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packetOuts = append(d.packetOuts, po)
	if d.w == nil || len(po.Data) == 0 {
		return nil
	}
	return d.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(po.Data),
		Length:        len(po.Data),
	}, po.Data)
}

// FlowMods returns a copy of the flow mods received so far.
func (d *RecordingDatapath) FlowMods() []FlowMod {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FlowMod, len(d.flowMods))
	copy(out, d.flowMods)
	return out
}

// PacketOuts returns a copy of the packet outs received so far.
func (d *RecordingDatapath) PacketOuts() []PacketOut {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PacketOut, len(d.packetOuts))
	copy(out, d.packetOuts)
	return out
}

var _ Datapath = (*RecordingDatapath)(nil)
