package southbound

import (
	"errors"
	"fmt"
	"net"
	"time"

	"sdnguard/internal/models"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNoEthernet means the frame could not be decoded as Ethernet.
var ErrNoEthernet = errors.New("southbound: frame has no ethernet header")

// Decode extracts addressing from a raw Ethernet frame. Frames without an
// IPv4 layer decode successfully with empty network fields.
func Decode(data []byte) (models.PacketData, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	p := models.PacketData{
		Timestamp: time.Now(),
		Length:    len(data),
	}

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return p, ErrNoEthernet
	}
	eth := ethLayer.(*layers.Ethernet)
	p.SrcMAC = eth.SrcMAC.String()
	p.DstMAC = eth.DstMAC.String()

	if ipLayer := pkt.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip := ipLayer.(*layers.IPv4)
		p.SrcIP = ip.SrcIP.String()
		p.DstIP = ip.DstIP.String()
		p.Protocol = ip.Protocol.String()
	} else {
		p.Protocol = eth.EthernetType.String()
	}
	return p, nil
}

// FrameSpec describes a frame for BuildFrame. Leave DstIP empty for an ARP
// request, which carries no IPv4 layer.
type FrameSpec struct {
	SrcMAC  string
	DstMAC  string
	SrcIP   string
	DstIP   string
	Payload []byte
}

// BuildFrame serializes an Ethernet/IPv4/UDP frame, or an ARP request when
// DstIP is empty. Used by replay tooling and tests.
func BuildFrame(spec FrameSpec) ([]byte, error) {
	src, err := net.ParseMAC(spec.SrcMAC)
	if err != nil {
		return nil, fmt.Errorf("src mac: %w", err)
	}
	dst, err := net.ParseMAC(spec.DstMAC)
	if err != nil {
		return nil, fmt.Errorf("dst mac: %w", err)
	}
	srcIP := net.ParseIP(spec.SrcIP).To4()
	if srcIP == nil {
		return nil, fmt.Errorf("invalid src ip %q", spec.SrcIP)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	if spec.DstIP == "" {
		eth := layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetTypeARP}
		arp := layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte(src),
			SourceProtAddress: []byte(srcIP),
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte(srcIP),
		}
		if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	dstIP := net.ParseIP(spec.DstIP).To4()
	if dstIP == nil {
		return nil, fmt.Errorf("invalid dst ip %q", spec.DstIP)
	}
	eth := layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := layers.UDP{SrcPort: 40000, DstPort: 9}
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return nil, err
	}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(spec.Payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
