package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"sdnguard/internal/observability"
	"sdnguard/internal/shell"
	"sdnguard/internal/topology"
)

// Environment applies typed remediation operations to the emulated network.
type Environment interface {
	SetLinkStatus(ctx context.Context, a, b string, up bool) error
	AttachLink(ctx context.Context, a, b, aIntf, bIntf string) error
	SetInterfaceUp(ctx context.Context, node, intf, cidr string, defaultRoute bool) error
	DeleteInterface(ctx context.Context, node, intf string) error
	DetachPort(ctx context.Context, sw, port string) ([]byte, error)
	DeleteLink(ctx context.Context, intf string) error
	ClearFlowTable(ctx context.Context, sw string) ([]byte, error)
	RunShell(ctx context.Context, line string) ([]byte, error)
}

// linkOps is the part of *netlink.Handle the environment uses.
type linkOps interface {
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	LinkSetNsFd(link netlink.Link, fd int) error
	AddrReplace(link netlink.Link, addr *netlink.Addr) error
	RouteReplace(route *netlink.Route) error
	Close()
}

// nsOpener returns a netlink handle inside node's namespace and the
// namespace itself. Switches live in the root namespace.
type nsOpener func(node string, isSwitch bool) (linkOps, netns.NsHandle, error)

// NetlinkEnvironment drives hosts through their network namespaces and
// switches through ovs-vsctl / ovs-ofctl. The topology is its link set.
type NetlinkEnvironment struct {
	topo     *topology.Topology
	runner   shell.Runner
	vsctl    string
	ofctl    string
	shellBin string
	open     nsOpener
	obs      observability.Observer
}

// EnvConfig names the external tools and how host namespaces are found.
type EnvConfig struct {
	VSCtl       string
	OFCtl       string
	Shell       string
	NetnsPrefix string // host h3 lives in named namespace <prefix>h3
}

func NewNetlinkEnvironment(cfg EnvConfig, topo *topology.Topology, runner shell.Runner, obs observability.Observer) *NetlinkEnvironment {
	if cfg.VSCtl == "" {
		cfg.VSCtl = "ovs-vsctl"
	}
	if cfg.OFCtl == "" {
		cfg.OFCtl = "ovs-ofctl"
	}
	return &NetlinkEnvironment{
		topo:     topo,
		runner:   runner,
		vsctl:    cfg.VSCtl,
		ofctl:    cfg.OFCtl,
		shellBin: cfg.Shell,
		open:     namedNamespaces(cfg.NetnsPrefix),
		obs:      obs,
	}
}

func namedNamespaces(prefix string) nsOpener {
	return func(node string, isSwitch bool) (linkOps, netns.NsHandle, error) {
		if isSwitch {
			h, err := netlink.NewHandle()
			if err != nil {
				return nil, netns.None(), fmt.Errorf("netlink root handle: %w", err)
			}
			return h, netns.None(), nil
		}
		ns, err := netns.GetFromName(prefix + node)
		if err != nil {
			return nil, netns.None(), fmt.Errorf("netns %s%s: %w", prefix, node, err)
		}
		h, err := netlink.NewHandleAt(ns)
		if err != nil {
			ns.Close()
			return nil, netns.None(), fmt.Errorf("netlink handle in %s: %w", node, err)
		}
		return h, ns, nil
	}
}

// withNode runs fn with a netlink handle in node's namespace.
func (e *NetlinkEnvironment) withNode(node string, fn func(h linkOps, ns netns.NsHandle) error) error {
	h, ns, err := e.open(node, e.topo.IsSwitch(node))
	if err != nil {
		return err
	}
	defer h.Close()
	if ns.IsOpen() {
		defer ns.Close()
	}
	return fn(h, ns)
}

func (e *NetlinkEnvironment) setLink(node, intf string, up bool) error {
	return e.withNode(node, func(h linkOps, _ netns.NsHandle) error {
		link, err := h.LinkByName(intf)
		if err != nil {
			return fmt.Errorf("%s: %w", intf, err)
		}
		if up {
			return h.LinkSetUp(link)
		}
		return h.LinkSetDown(link)
	})
}

func (e *NetlinkEnvironment) SetLinkStatus(_ context.Context, a, b string, up bool) error {
	link, err := e.topo.Between(a, b)
	if err != nil {
		return err
	}
	return errors.Join(
		e.setLink(link.A, link.AIntf, up),
		e.setLink(link.B, link.BIntf, up),
	)
}

// AttachLink creates a veth pair in the root namespace, moves each host end
// into its host's namespace and adds switch ends to their bridge. On failure
// the link set and any veth already created are restored.
func (e *NetlinkEnvironment) AttachLink(ctx context.Context, a, b, aIntf, bIntf string) error {
	link, err := e.topo.AddLink(a, b, aIntf, bIntf)
	if err != nil {
		return err
	}
	aIntf, bIntf = link.AIntf, link.BIntf
	ends := []linkEnd{{a, aIntf}, {b, bIntf}}

	created := false
	rollback := func(err error) error {
		if created {
			if verr := e.removeVeth(ctx, ends); verr != nil {
				e.obs.LogError("veth_rollback_failed", verr, observability.F("a", aIntf), observability.F("b", bIntf))
			}
		}
		_, _ = e.topo.RemoveLink(aIntf)
		return err
	}

	root, _, err := e.open("", true)
	if err != nil {
		return rollback(err)
	}
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: aIntf},
		PeerName:  bIntf,
	}
	err = root.LinkAdd(veth)
	root.Close()
	if err != nil {
		return rollback(fmt.Errorf("veth %s/%s: %w", aIntf, bIntf, err))
	}
	created = true
	e.obs.LogDebug("veth_created", observability.F("a", aIntf), observability.F("b", bIntf))

	for _, end := range ends {
		if e.topo.IsSwitch(end.node) {
			if _, err := e.runner.Run(ctx, e.vsctl, "--may-exist", "add-port", end.node, end.intf); err != nil {
				return rollback(err)
			}
			if err := e.setLink(end.node, end.intf, true); err != nil {
				return rollback(err)
			}
			continue
		}
		if err := e.moveIntoHost(end.node, end.intf); err != nil {
			return rollback(err)
		}
	}
	return nil
}

type linkEnd struct{ node, intf string }

// removeVeth undoes a partial AttachLink. Switch ports are dropped from their
// bridge; deleting either veth end removes the pair, so the first end still
// found (root namespace first, then the host's) is deleted.
func (e *NetlinkEnvironment) removeVeth(ctx context.Context, ends []linkEnd) error {
	var errs []error
	for _, end := range ends {
		if e.topo.IsSwitch(end.node) {
			if _, err := e.runner.Run(ctx, e.vsctl, "--if-exists", "del-port", end.node, end.intf); err != nil {
				errs = append(errs, err)
			}
		}
	}

	del := func(h linkOps, intf string) bool {
		link, err := h.LinkByName(intf)
		if err != nil {
			return false
		}
		if err := h.LinkDel(link); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", intf, err))
		}
		return true
	}

	root, _, err := e.open("", true)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	defer root.Close()
	for _, end := range ends {
		if del(root, end.intf) {
			return errors.Join(errs...)
		}
	}
	for _, end := range ends {
		if e.topo.IsSwitch(end.node) {
			continue
		}
		found := false
		err := e.withNode(end.node, func(h linkOps, _ netns.NsHandle) error {
			found = del(h, end.intf)
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
		if found {
			break
		}
	}
	return errors.Join(errs...)
}

func (e *NetlinkEnvironment) moveIntoHost(node, intf string) error {
	return e.withNode(node, func(_ linkOps, ns netns.NsHandle) error {
		root, _, err := e.open("", true)
		if err != nil {
			return err
		}
		defer root.Close()
		link, err := root.LinkByName(intf)
		if err != nil {
			return fmt.Errorf("%s: %w", intf, err)
		}
		if err := root.LinkSetNsFd(link, int(ns)); err != nil {
			return fmt.Errorf("move %s into %s: %w", intf, node, err)
		}
		return nil
	})
}

func (e *NetlinkEnvironment) SetInterfaceUp(_ context.Context, node, intf, cidr string, defaultRoute bool) error {
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("address %q: %w", cidr, err)
	}
	return e.withNode(node, func(h linkOps, _ netns.NsHandle) error {
		link, err := h.LinkByName(intf)
		if err != nil {
			return fmt.Errorf("%s: %w", intf, err)
		}
		if err := h.AddrReplace(link, addr); err != nil {
			return fmt.Errorf("addr %s on %s: %w", cidr, intf, err)
		}
		if err := h.LinkSetUp(link); err != nil {
			return fmt.Errorf("up %s: %w", intf, err)
		}
		if !defaultRoute {
			return nil
		}
		route := &netlink.Route{
			LinkIndex: link.Attrs().Index,
			Scope:     netlink.SCOPE_LINK,
		}
		if err := h.RouteReplace(route); err != nil {
			return fmt.Errorf("default route via %s: %w", intf, err)
		}
		return nil
	})
}

func (e *NetlinkEnvironment) DeleteInterface(_ context.Context, node, intf string) error {
	return e.withNode(node, func(h linkOps, _ netns.NsHandle) error {
		link, err := h.LinkByName(intf)
		if err != nil {
			return fmt.Errorf("%s: %w", intf, err)
		}
		return h.LinkDel(link)
	})
}

func (e *NetlinkEnvironment) DetachPort(ctx context.Context, sw, port string) ([]byte, error) {
	return e.runner.Run(ctx, e.vsctl, "--if-exists", "del-port", sw, port)
}

// DeleteLink only updates the link set; the kernel side went with
// DeleteInterface.
func (e *NetlinkEnvironment) DeleteLink(_ context.Context, intf string) error {
	_, err := e.topo.RemoveLink(intf)
	return err
}

func (e *NetlinkEnvironment) ClearFlowTable(ctx context.Context, sw string) ([]byte, error) {
	return e.runner.Run(ctx, e.ofctl, "del-flows", sw)
}

func (e *NetlinkEnvironment) RunShell(ctx context.Context, line string) ([]byte, error) {
	return shell.RunLine(ctx, e.runner, e.shellBin, line)
}

var _ Environment = (*NetlinkEnvironment)(nil)
