// Package topology models the emulated network the controller protects:
// hosts, switches and the links between them, with Mininet-style interface
// naming (<node>-eth<N>, hosts counting from 0 and switches from 1).
package topology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoLink is returned when no link matches a lookup.
var ErrNoLink = errors.New("topology: no such link")

// Host is an end node with the address it is configured with.
type Host struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"` // CIDR, e.g. 10.0.0.3/8
}

// Link joins two nodes. Interface names are filled in by New when empty.
type Link struct {
	A     string `yaml:"a" json:"a"`
	B     string `yaml:"b" json:"b"`
	AIntf string `yaml:"a_intf,omitempty" json:"a_intf"`
	BIntf string `yaml:"b_intf,omitempty" json:"b_intf"`
}

func (l Link) String() string {
	return fmt.Sprintf("%s<->%s", l.AIntf, l.BIntf)
}

// Has reports whether the link terminates on the named interface.
func (l Link) Has(intf string) bool {
	return l.AIntf == intf || l.BIntf == intf
}

// Spec is the declarative form loaded from configuration.
type Spec struct {
	Hosts    []Host   `yaml:"hosts"`
	Switches []string `yaml:"switches"`
	Links    []Link   `yaml:"links"`
}

// DefaultSpec is the two-switch lab: h1 and h2 on s1, h3 on s2, s1 to s2.
func DefaultSpec() Spec {
	return Spec{
		Hosts: []Host{
			{Name: "h1", Address: "10.0.0.1/8"},
			{Name: "h2", Address: "10.0.0.2/8"},
			{Name: "h3", Address: "10.0.0.3/8"},
		},
		Switches: []string{"s1", "s2"},
		Links: []Link{
			{A: "h1", B: "s1"},
			{A: "h2", B: "s1"},
			{A: "h3", B: "s2"},
			{A: "s1", B: "s2"},
		},
	}
}

// Topology is the mutable link set. It is safe for concurrent use.
type Topology struct {
	mu       sync.Mutex
	hosts    map[string]Host
	switches map[string]bool
	links    []Link
	next     map[string]int
}

// New validates a Spec and assigns interface names to its links.
func New(spec Spec) (*Topology, error) {
	t := &Topology{
		hosts:    make(map[string]Host, len(spec.Hosts)),
		switches: make(map[string]bool, len(spec.Switches)),
		next:     make(map[string]int),
	}
	for _, h := range spec.Hosts {
		if h.Name == "" {
			return nil, errors.New("topology: host without name")
		}
		t.hosts[h.Name] = h
		t.next[h.Name] = 0
	}
	for _, s := range spec.Switches {
		if _, dup := t.hosts[s]; dup {
			return nil, fmt.Errorf("topology: %s is both host and switch", s)
		}
		t.switches[s] = true
		t.next[s] = 1
	}
	for _, l := range spec.Links {
		if _, err := t.addLinkLocked(l.A, l.B, l.AIntf, l.BIntf); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Host returns the named host.
func (t *Topology) Host(name string) (Host, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.hosts[name]
	return h, ok
}

// IsSwitch reports whether name is a known switch.
func (t *Topology) IsSwitch(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.switches[name]
}

// Links returns a copy of the current link set.
func (t *Topology) Links() []Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Link, len(t.links))
	copy(out, t.links)
	return out
}

// Between returns the link joining a and b, oriented so that A == a.
func (t *Topology) Between(a, b string) (Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range t.links {
		if l.A == a && l.B == b {
			return l, nil
		}
		if l.A == b && l.B == a {
			return Link{A: a, B: b, AIntf: l.BIntf, BIntf: l.AIntf}, nil
		}
	}
	return Link{}, fmt.Errorf("%w between %s and %s", ErrNoLink, a, b)
}

// NextInterface is the name the next link on node would get.
func (t *Topology) NextInterface(node string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ifaceName(node, t.next[node])
}

// Interfaces lists the interfaces of node that are part of a link, sorted.
func (t *Topology) Interfaces(node string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, l := range t.links {
		if l.A == node {
			out = append(out, l.AIntf)
		}
		if l.B == node {
			out = append(out, l.BIntf)
		}
	}
	sort.Strings(out)
	return out
}

// AddLink joins a and b. Empty interface names are assigned automatically.
func (t *Topology) AddLink(a, b, aIntf, bIntf string) (Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLinkLocked(a, b, aIntf, bIntf)
}

// RemoveLink drops the link terminating on intf from the link set.
func (t *Topology) RemoveLink(intf string) (Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.links {
		if l.Has(intf) {
			t.links = append(t.links[:i], t.links[i+1:]...)
			return l, nil
		}
	}
	return Link{}, fmt.Errorf("%w on %s", ErrNoLink, intf)
}

func (t *Topology) addLinkLocked(a, b, aIntf, bIntf string) (Link, error) {
	if !t.knownLocked(a) || !t.knownLocked(b) {
		return Link{}, fmt.Errorf("topology: link %s-%s references unknown node", a, b)
	}
	if aIntf == "" {
		aIntf = ifaceName(a, t.next[a])
	}
	if bIntf == "" {
		bIntf = ifaceName(b, t.next[b])
	}
	for _, l := range t.links {
		if l.Has(aIntf) || l.Has(bIntf) {
			return Link{}, fmt.Errorf("topology: interface already linked: %s", l)
		}
	}
	t.bump(a, aIntf)
	t.bump(b, bIntf)

	l := Link{A: a, B: b, AIntf: aIntf, BIntf: bIntf}
	t.links = append(t.links, l)
	return l, nil
}

func (t *Topology) knownLocked(name string) bool {
	if _, ok := t.hosts[name]; ok {
		return true
	}
	return t.switches[name]
}

// bump keeps the automatic counter ahead of explicitly named interfaces.
func (t *Topology) bump(node, intf string) {
	var idx int
	if _, err := fmt.Sscanf(strings.TrimPrefix(intf, node+"-eth"), "%d", &idx); err != nil {
		return
	}
	if idx+1 > t.next[node] {
		t.next[node] = idx + 1
	}
}

func ifaceName(node string, idx int) string {
	return fmt.Sprintf("%s-eth%d", node, idx)
}
