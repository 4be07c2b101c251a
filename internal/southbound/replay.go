package southbound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/pcapgo"
)

// ReplaySource turns the records of a pcap stream into PacketIn events on a
// single datapath and ingress port.
type ReplaySource struct {
	r      io.Reader
	dp     Datapath
	inPort uint32
	// Paced replays honour the capture timestamps instead of reading flat out.
	Paced bool
}

func NewReplaySource(r io.Reader, dp Datapath, inPort uint32) *ReplaySource {
	return &ReplaySource{r: r, dp: dp, inPort: inPort}
}

// Run emits a SwitchFeatures event followed by one PacketIn per record. It
// closes nothing; the caller owns out.
func (s *ReplaySource) Run(ctx context.Context, out chan<- Event) error {
	reader, err := pcapgo.NewReader(s.r)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}

	if err := send(ctx, out, SwitchFeatures{DP: s.dp}); err != nil {
		return err
	}

	var prev time.Time
	for {
		data, ci, err := reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read pcap: %w", err)
		}

		if s.Paced && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prev = ci.Timestamp

		ev := PacketIn{
			DP:       s.dp,
			InPort:   s.inPort,
			BufferID: NoBuffer,
			Data:     data,
			Received: ci.Timestamp,
		}
		if err := send(ctx, out, ev); err != nil {
			return err
		}
	}
}

func send(ctx context.Context, out chan<- Event, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- ev:
		return nil
	}
}
