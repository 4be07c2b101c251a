package models

import "time"

// PacketData holds the fields the controller extracts from a PacketIn frame.
type PacketData struct {
	Timestamp  time.Time
	DatapathID uint64
	InPort     uint32

	SrcMAC string
	DstMAC string

	// Network layer, empty when the frame carries no IPv4 payload.
	SrcIP    string
	DstIP    string
	Protocol string
	Length   int
}

// HasNetworkLayer reports whether the frame counted toward a rate window.
func (p PacketData) HasNetworkLayer() bool {
	return p.DstIP != ""
}
