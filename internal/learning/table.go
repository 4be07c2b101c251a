// Package learning implements the L2 learning behaviour of the controller:
// it remembers which port each source MAC was last seen on, per switch, and
// forwards frames to the learned port or floods them.
package learning

import (
	"sort"
	"sync"
)

// Binding is one learned (switch, mac) -> port entry.
type Binding struct {
	DatapathID uint64 `json:"dpid"`
	MAC        string `json:"mac"`
	Port       uint32 `json:"port"`
}

// Table holds bindings for the lifetime of the process. Entries are
// overwritten, never aged out.
type Table struct {
	mu       sync.RWMutex
	bindings map[uint64]map[string]uint32
	size     int
}

func NewTable() *Table {
	return &Table{bindings: make(map[uint64]map[string]uint32)}
}

// Learn records that mac was seen on port of switch dpid.
func (t *Table) Learn(dpid uint64, mac string, port uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ports, ok := t.bindings[dpid]
	if !ok {
		ports = make(map[string]uint32)
		t.bindings[dpid] = ports
	}
	if _, seen := ports[mac]; !seen {
		t.size++
	}
	ports[mac] = port
}

// Lookup returns the port mac was last seen on, if any.
func (t *Table) Lookup(dpid uint64, mac string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	port, ok := t.bindings[dpid][mac]
	return port, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Snapshot returns all bindings ordered by switch then MAC.
func (t *Table) Snapshot() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Binding, 0, t.size)
	for dpid, ports := range t.bindings {
		for mac, port := range ports {
			out = append(out, Binding{DatapathID: dpid, MAC: mac, Port: port})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DatapathID != out[j].DatapathID {
			return out[i].DatapathID < out[j].DatapathID
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}
