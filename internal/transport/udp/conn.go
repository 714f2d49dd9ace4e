// Package udp wraps the datagram socket shared by the trigger and ack
// paths. Each side listens on its own fixed port and sends to the
// other's, so a coordinator broadcasting triggers never reads back its
// own packets.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// MaxDatagramSize bounds a single trigger or ack payload.
const MaxDatagramSize = 1024

// ErrDeadline is returned by ReceiveUntil when the deadline passes with
// no datagram. It is an expected outcome during ack collection, not a
// transport failure.
var ErrDeadline = errors.New("receive deadline reached")

// Conn is a bidirectional UDP endpoint.
type Conn struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket on the given local port. Port 0 picks an
// ephemeral port (used by tests).
func Listen(port int) (*Conn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", port, err)
	}
	return &Conn{conn: conn}, nil
}

// LocalPort returns the bound port.
func (c *Conn) LocalPort() int {
	return c.conn.LocalAddr().(*net.UDPAddr).Port
}

// SendTo writes one datagram to host:port.
func (c *Conn) SendTo(payload []byte, host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}
	if _, err := c.conn.WriteToUDP(payload, addr); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	return nil
}

// Receive blocks until a datagram arrives. The returned slice aliases buf.
func (c *Conn) Receive(buf []byte) ([]byte, *net.UDPAddr, error) {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, nil, err
	}
	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// ReceiveUntil blocks until a datagram arrives or deadline passes,
// returning ErrDeadline in the latter case.
func (c *Conn) ReceiveUntil(buf []byte, deadline time.Time) ([]byte, *net.UDPAddr, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, err
	}
	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, ErrDeadline
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// Close releases the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}
