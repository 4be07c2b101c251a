package analysis

import (
	"sort"
	"sync"
	"time"

	"sdnguard/internal/models"
)

// IPStat holds stats for a single IP.
type IPStat struct {
	IP      string
	Packets int64
	Bytes   int64
}

// ProtocolStat holds stats for a single protocol.
type ProtocolStat struct {
	Protocol string
	Count    int64
}

// Totals is a point-in-time copy of the cumulative counters.
type Totals struct {
	Frames       int64
	IPv4Frames   int64
	Bytes        int64
	Destinations int
}

// TrafficStats tracks what the controller has seen through packet-in events.
type TrafficStats struct {
	mu             sync.Mutex
	now            func() time.Time
	totalFrames    int64
	ipv4Frames     int64
	totalBytes     int64
	windowBytes    int64
	windowPackets  int64
	lastTick       time.Time
	dstStats       map[string]*IPStat
	srcStats       map[string]*IPStat
	protocolCounts map[string]int64
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats() *TrafficStats {
	return newTrafficStats(time.Now)
}

func newTrafficStats(now func() time.Time) *TrafficStats {
	return &TrafficStats{
		now:            now,
		lastTick:       now(),
		dstStats:       make(map[string]*IPStat),
		srcStats:       make(map[string]*IPStat),
		protocolCounts: make(map[string]int64),
	}
}

// ProcessPacket updates stats with a new packet.
func (s *TrafficStats) ProcessPacket(pkt models.PacketData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(pkt.Length)
	s.totalFrames++
	s.totalBytes += size
	s.windowBytes += size
	s.windowPackets++

	if pkt.HasNetworkLayer() {
		s.ipv4Frames++
		bump(s.dstStats, pkt.DstIP, size)
		bump(s.srcStats, pkt.SrcIP, size)
	}

	proto := pkt.Protocol
	if proto == "" {
		proto = "Unknown"
	}
	s.protocolCounts[proto]++
}

func bump(m map[string]*IPStat, ip string, size int64) {
	if ip == "" {
		return
	}
	st, ok := m[ip]
	if !ok {
		st = &IPStat{IP: ip}
		m[ip] = st
	}
	st.Packets++
	st.Bytes += size
}

// GetRates returns the bandwidth (bps) and packet rate (pps) since the last call.
func (s *TrafficStats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration <= 0 {
		return 0, 0
	}

	// Bytes * 8 = Bits
	bps := (float64(s.windowBytes) * 8) / duration
	pps := float64(s.windowPackets) / duration

	// Reset window
	s.windowBytes = 0
	s.windowPackets = 0
	s.lastTick = now

	return bps, pps
}

// GetTopDestinations returns the top N destination IPs by packet count.
func (s *TrafficStats) GetTopDestinations(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return top(s.dstStats, limit)
}

// GetTopTalkers returns the top N source IPs by volume.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := top(s.srcStats, 0)
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Bytes > stats[j].Bytes
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// top sorts by packets descending, ties broken by IP for stable output.
func top(m map[string]*IPStat, limit int) []IPStat {
	stats := make([]IPStat, 0, len(m))
	for _, st := range m {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Packets != stats[j].Packets {
			return stats[i].Packets > stats[j].Packets
		}
		return stats[i].IP < stats[j].IP
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// GetProtocolStats returns the protocol distribution.
func (s *TrafficStats) GetProtocolStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]ProtocolStat, 0, len(s.protocolCounts))
	for proto, count := range s.protocolCounts {
		stats = append(stats, ProtocolStat{Protocol: proto, Count: count})
	}

	// Sort descending by count
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Protocol < stats[j].Protocol
	})

	return stats
}

// GetTotals returns the cumulative counters.
func (s *TrafficStats) GetTotals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Totals{
		Frames:       s.totalFrames,
		IPv4Frames:   s.ipv4Frames,
		Bytes:        s.totalBytes,
		Destinations: len(s.dstStats),
	}
}

// GetTotalDataTransferred returns the total bytes seen.
func (s *TrafficStats) GetTotalDataTransferred() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}
