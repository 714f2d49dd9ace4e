package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NodeAddress identifies one fleet member by its trigger endpoint.
// The set of nodes is fixed at process start and never mutated.
type NodeAddress struct {
	Host string
	Port int
}

func (a NodeAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseNodeAddress parses "host:port" into a NodeAddress.
func ParseNodeAddress(s string) (NodeAddress, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return NodeAddress{}, fmt.Errorf("parse node address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return NodeAddress{}, fmt.Errorf("parse node address %q: invalid port %q", s, portStr)
	}
	return NodeAddress{Host: host, Port: port}, nil
}

// ParseFleet parses a comma-separated list of "host:port" entries.
// Empty entries are skipped.
func ParseFleet(s string) ([]NodeAddress, error) {
	var nodes []NodeAddress
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		node, err := ParseNodeAddress(part)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
