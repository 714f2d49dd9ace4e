package udp

import (
	"errors"
	"testing"
	"time"
)

func newLoopbackPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, err := Listen(0)
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	b, err := Listen(0)
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	return a, b
}

func TestConn_SendAndReceive(t *testing.T) {
	a, b := newLoopbackPair(t)

	if err := a.SendTo([]byte("shoot"), "127.0.0.1", b.LocalPort()); err != nil {
		t.Fatalf("send: %v", err)
	}

	buf := make([]byte, MaxDatagramSize)
	payload, addr, err := b.ReceiveUntil(buf, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(payload) != "shoot" {
		t.Errorf("payload = %q, want %q", payload, "shoot")
	}
	if addr.Port != a.LocalPort() {
		t.Errorf("sender port = %d, want %d", addr.Port, a.LocalPort())
	}
}

func TestConn_ReceiveUntil_DeadlineReached(t *testing.T) {
	_, b := newLoopbackPair(t)

	buf := make([]byte, MaxDatagramSize)
	start := time.Now()
	_, _, err := b.ReceiveUntil(buf, start.Add(50*time.Millisecond))

	if !errors.Is(err, ErrDeadline) {
		t.Fatalf("err = %v, want ErrDeadline", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("deadline receive took %v", elapsed)
	}
}

func TestConn_ReplyToSender(t *testing.T) {
	// Node pattern: receive a trigger on one socket, ack the sender's
	// host on a different fixed port.
	coord, node := newLoopbackPair(t)
	ackConn, err := Listen(0)
	if err != nil {
		t.Fatalf("listen ack: %v", err)
	}
	t.Cleanup(func() { ackConn.Close() })

	if err := coord.SendTo([]byte("shoot"), "127.0.0.1", node.LocalPort()); err != nil {
		t.Fatalf("send trigger: %v", err)
	}

	buf := make([]byte, MaxDatagramSize)
	_, sender, err := node.ReceiveUntil(buf, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("receive trigger: %v", err)
	}

	if err := node.SendTo([]byte("ok:a.jpg"), sender.IP.String(), ackConn.LocalPort()); err != nil {
		t.Fatalf("send ack: %v", err)
	}

	payload, _, err := ackConn.ReceiveUntil(buf, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("receive ack: %v", err)
	}
	if string(payload) != "ok:a.jpg" {
		t.Errorf("ack payload = %q", payload)
	}
}
