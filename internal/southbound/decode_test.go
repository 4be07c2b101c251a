package southbound

import (
	"errors"
	"testing"
)

func TestDecodeIPv4Frame(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: "00:00:00:00:00:01",
		DstMAC: "00:00:00:00:00:03",
		SrcIP:  "10.0.0.1",
		DstIP:  "10.0.0.3",
	})
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}

	pkt, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt.SrcMAC != "00:00:00:00:00:01" || pkt.DstMAC != "00:00:00:00:00:03" {
		t.Fatalf("unexpected macs: %+v", pkt)
	}
	if pkt.DstIP != "10.0.0.3" || pkt.SrcIP != "10.0.0.1" {
		t.Fatalf("unexpected ips: %+v", pkt)
	}
	if pkt.Protocol != "UDP" {
		t.Fatalf("expected UDP, got %s", pkt.Protocol)
	}
	if !pkt.HasNetworkLayer() {
		t.Fatalf("expected network layer")
	}
}

func TestDecodeARPHasNoNetworkLayer(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: "00:00:00:00:00:01",
		DstMAC: "ff:ff:ff:ff:ff:ff",
		SrcIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}

	pkt, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt.HasNetworkLayer() {
		t.Fatalf("ARP must not count as network layer: %+v", pkt)
	}
	if pkt.Protocol != "ARP" {
		t.Fatalf("expected ARP, got %s", pkt.Protocol)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xde, 0xad}); !errors.Is(err, ErrNoEthernet) {
		t.Fatalf("expected ErrNoEthernet, got %v", err)
	}
}

func TestBuildFrameRejectsBadInput(t *testing.T) {
	if _, err := BuildFrame(FrameSpec{SrcMAC: "nope", DstMAC: "00:00:00:00:00:01", SrcIP: "10.0.0.1"}); err == nil {
		t.Fatalf("expected error for bad mac")
	}
	if _, err := BuildFrame(FrameSpec{SrcMAC: "00:00:00:00:00:01", DstMAC: "00:00:00:00:00:02", SrcIP: "10.0.0.1", DstIP: "x"}); err == nil {
		t.Fatalf("expected error for bad dst ip")
	}
}
