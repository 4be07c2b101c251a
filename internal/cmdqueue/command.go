// Package cmdqueue carries remediation commands from the controller to the
// process that owns the network environment.
//
// A batch is plain text, one command per line. Lines starting with "py " are
// typed environment operations:
//
//	py link-status <a> <b> up|down
//	py add-link <a> <b> <a-intf> <b-intf>
//	py if-up <node> <intf> <cidr> [default-route]
//	py del-if <node> <intf>
//	py detach <switch> <port>
//	py del-link <intf>
//	py del-flows <switch>...
//
// Any other non-empty line is a raw shell command.
package cmdqueue

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownOp = errors.New("cmdqueue: unknown operation")
	ErrMalformed = errors.New("cmdqueue: malformed command")
)

const typedPrefix = "py "

// Command is one remediation step. The set of implementations is closed.
type Command interface {
	isCommand()
}

// SetLinkStatus brings the link between two nodes up or down.
type SetLinkStatus struct {
	A, B string
	Up   bool
}

// AttachLink creates a link between two nodes with explicit interface names.
type AttachLink struct {
	A, B         string
	AIntf, BIntf string
}

// SetInterfaceUp assigns an address to an interface, brings it up and
// optionally points the default route at it.
type SetInterfaceUp struct {
	Node         string
	Intf         string
	Address      string // CIDR
	DefaultRoute bool
}

// DeleteInterface removes an interface from a node.
type DeleteInterface struct {
	Node string
	Intf string
}

// DetachPort removes a port from a switch.
type DetachPort struct {
	Switch string
	Port   string
}

// DeleteLink drops the link owning Intf from the topology link set.
type DeleteLink struct {
	Intf string
}

// ClearFlowTable removes all flow entries from each switch.
type ClearFlowTable struct {
	Switches []string
}

// RunShell is a raw shell line.
type RunShell struct {
	Text string
}

func (SetLinkStatus) isCommand()   {}
func (AttachLink) isCommand()      {}
func (SetInterfaceUp) isCommand()  {}
func (DeleteInterface) isCommand() {}
func (DetachPort) isCommand()      {}
func (DeleteLink) isCommand()      {}
func (ClearFlowTable) isCommand()  {}
func (RunShell) isCommand()        {}

// Encode renders c as a single queue line.
func Encode(c Command) (string, error) {
	var args []string
	switch c := c.(type) {
	case SetLinkStatus:
		status := "down"
		if c.Up {
			status = "up"
		}
		args = []string{"link-status", c.A, c.B, status}
	case AttachLink:
		args = []string{"add-link", c.A, c.B, c.AIntf, c.BIntf}
	case SetInterfaceUp:
		args = []string{"if-up", c.Node, c.Intf, c.Address}
		if c.DefaultRoute {
			args = append(args, "default-route")
		}
	case DeleteInterface:
		args = []string{"del-if", c.Node, c.Intf}
	case DetachPort:
		args = []string{"detach", c.Switch, c.Port}
	case DeleteLink:
		args = []string{"del-link", c.Intf}
	case ClearFlowTable:
		if len(c.Switches) == 0 {
			return "", fmt.Errorf("%w: del-flows needs at least one switch", ErrMalformed)
		}
		args = append([]string{"del-flows"}, c.Switches...)
	case RunShell:
		text := strings.TrimSpace(c.Text)
		switch {
		case text == "":
			return "", fmt.Errorf("%w: empty shell line", ErrMalformed)
		case strings.ContainsAny(text, "\r\n"):
			return "", fmt.Errorf("%w: shell line spans lines", ErrMalformed)
		case text == "py" || strings.HasPrefix(text, typedPrefix):
			return "", fmt.Errorf("%w: shell line collides with typed prefix", ErrMalformed)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownOp, c)
	}

	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\r\n") {
			return "", fmt.Errorf("%w: bad argument %q in %s", ErrMalformed, a, args[0])
		}
	}
	return typedPrefix + strings.Join(args, " "), nil
}

// EncodeAll encodes a batch, failing on the first bad command.
func EncodeAll(cmds []Command) ([]string, error) {
	lines := make([]string, 0, len(cmds))
	for i, c := range cmds {
		line, err := Encode(c)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Parse decodes one queue line.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	if line != "py" && !strings.HasPrefix(line, typedPrefix) {
		return RunShell{Text: line}, nil
	}

	fields := strings.Fields(line)[1:]
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: missing operation", ErrMalformed)
	}
	op, args := fields[0], fields[1:]

	want := func(n ...int) error {
		for _, k := range n {
			if len(args) == k {
				return nil
			}
		}
		return fmt.Errorf("%w: %s takes %v arguments, got %d", ErrMalformed, op, n, len(args))
	}

	switch op {
	case "link-status":
		if err := want(3); err != nil {
			return nil, err
		}
		switch args[2] {
		case "up", "down":
		default:
			return nil, fmt.Errorf("%w: link status %q", ErrMalformed, args[2])
		}
		return SetLinkStatus{A: args[0], B: args[1], Up: args[2] == "up"}, nil
	case "add-link":
		if err := want(4); err != nil {
			return nil, err
		}
		return AttachLink{A: args[0], B: args[1], AIntf: args[2], BIntf: args[3]}, nil
	case "if-up":
		if err := want(3, 4); err != nil {
			return nil, err
		}
		c := SetInterfaceUp{Node: args[0], Intf: args[1], Address: args[2]}
		if len(args) == 4 {
			if args[3] != "default-route" {
				return nil, fmt.Errorf("%w: if-up flag %q", ErrMalformed, args[3])
			}
			c.DefaultRoute = true
		}
		return c, nil
	case "del-if":
		if err := want(2); err != nil {
			return nil, err
		}
		return DeleteInterface{Node: args[0], Intf: args[1]}, nil
	case "detach":
		if err := want(2); err != nil {
			return nil, err
		}
		return DetachPort{Switch: args[0], Port: args[1]}, nil
	case "del-link":
		if err := want(1); err != nil {
			return nil, err
		}
		return DeleteLink{Intf: args[0]}, nil
	case "del-flows":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: del-flows needs at least one switch", ErrMalformed)
		}
		return ClearFlowTable{Switches: args}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}
