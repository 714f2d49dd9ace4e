package broadcaster

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/camsync/internal/domain"
	"github.com/djlord-it/camsync/internal/testutil"
	"github.com/djlord-it/camsync/internal/transport/udp"
	"github.com/djlord-it/camsync/internal/wire"
)

var (
	nodeA = domain.NodeAddress{Host: "192.168.0.2", Port: 5005}
	nodeB = domain.NodeAddress{Host: "192.168.0.3", Port: 5005}
	nodeC = domain.NodeAddress{Host: "192.168.0.4", Port: 5005}
)

type queuedAck struct {
	payload string
	sender  *net.UDPAddr
}

// fakeTransport records sends and replays queued acks; once the queue is
// empty the collection deadline is reported as reached.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentPacket
	acks     []queuedAck
	receives int
	failHost string // SendTo fails for this host
}

type sentPacket struct {
	Payload string
	Host    string
	Port    int
}

func (t *fakeTransport) SendTo(payload []byte, host string, port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if host == t.failHost {
		return errors.New("network is unreachable")
	}
	t.sent = append(t.sent, sentPacket{Payload: string(payload), Host: host, Port: port})
	return nil
}

func (t *fakeTransport) ReceiveUntil(buf []byte, deadline time.Time) ([]byte, *net.UDPAddr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receives++
	if len(t.acks) == 0 {
		return nil, nil, udp.ErrDeadline
	}
	ack := t.acks[0]
	t.acks = t.acks[1:]
	n := copy(buf, ack.payload)
	return buf[:n], ack.sender, nil
}

func (t *fakeTransport) sentPackets() []sentPacket {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]sentPacket, len(t.sent))
	copy(result, t.sent)
	return result
}

func (t *fakeTransport) receiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receives
}

func senderFor(node domain.NodeAddress) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(node.Host), Port: node.Port}
}

func newTestBroadcaster(transport *fakeTransport) *Broadcaster {
	b := New(Config{AckWait: 2 * time.Second}, transport)
	b.clock = testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)).Now
	return b
}

func TestBroadcaster_SendsIdenticalBytesWithSharedTarget(t *testing.T) {
	transport := &fakeTransport{}
	b := newTestBroadcaster(transport)

	round, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA, nodeB, nodeC}, 300*time.Millisecond, "session1")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}

	sent := transport.sentPackets()
	if len(sent) != 3 {
		t.Fatalf("sends = %d, want 3", len(sent))
	}
	for _, pkt := range sent[1:] {
		if pkt.Payload != sent[0].Payload {
			t.Errorf("payloads differ: %q vs %q", pkt.Payload, sent[0].Payload)
		}
	}

	msg, err := wire.DecodeTrigger([]byte(sent[0].Payload))
	if err != nil {
		t.Fatalf("decode sent trigger: %v", err)
	}
	if msg.ShootAt == nil {
		t.Fatal("sent trigger has no shoot time")
	}
	if diff := msg.ShootAt.Sub(round.TargetAt); diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("encoded target drifted by %v", diff)
	}
	if msg.Prefix != "session1" {
		t.Errorf("Prefix = %q, want session1", msg.Prefix)
	}
	want := round.StartedAt.Add(300 * time.Millisecond)
	if !round.TargetAt.Equal(want) {
		t.Errorf("TargetAt = %v, want %v", round.TargetAt, want)
	}
}

func TestBroadcaster_PartialResponseYieldsTimeoutForSilentNode(t *testing.T) {
	transport := &fakeTransport{
		acks: []queuedAck{
			{payload: "ok:session1_20240115_100000_000000.jpg", sender: senderFor(nodeA)},
			{payload: "fail:rpicam-jpeg: exit status 1", sender: senderFor(nodeC)},
		},
	}
	b := newTestBroadcaster(transport)

	round, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA, nodeB, nodeC}, 300*time.Millisecond, "session1")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}

	if got := round.Results[nodeA]; got.Status != domain.RoundStatusOK || got.Detail != "session1_20240115_100000_000000.jpg" {
		t.Errorf("nodeA result = %+v", got)
	}
	if got := round.Results[nodeB]; got.Status != domain.RoundStatusTimeout {
		t.Errorf("nodeB result = %+v, want timeout", got)
	}
	if got := round.Results[nodeC]; got.Status != domain.RoundStatusFail || got.Detail != "rpicam-jpeg: exit status 1" {
		t.Errorf("nodeC result = %+v", got)
	}

	ok, failed, timedOut := round.Counts()
	if ok != 1 || failed != 1 || timedOut != 1 {
		t.Errorf("counts = (%d, %d, %d), want (1, 1, 1)", ok, failed, timedOut)
	}
}

func TestBroadcaster_EmptyFleetIsAnError(t *testing.T) {
	b := newTestBroadcaster(&fakeTransport{})

	_, err := b.TriggerAll(testutil.TestContext(t), nil, 300*time.Millisecond, "")
	if !errors.Is(err, ErrEmptyFleet) {
		t.Fatalf("err = %v, want ErrEmptyFleet", err)
	}
}

func TestBroadcaster_CollectionEndsOnceAllNodesAnswer(t *testing.T) {
	transport := &fakeTransport{
		acks: []queuedAck{
			{payload: "ok:a.jpg", sender: senderFor(nodeA)},
			{payload: "ok:b.jpg", sender: senderFor(nodeB)},
		},
	}
	b := newTestBroadcaster(transport)

	_, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA, nodeB}, 300*time.Millisecond, "")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}
	// Two acks satisfy two nodes; no further receive waits out the window.
	if got := transport.receiveCount(); got != 2 {
		t.Errorf("receives = %d, want 2", got)
	}
}

func TestBroadcaster_IgnoresUnknownSendersAndMalformedAcks(t *testing.T) {
	stranger := &net.UDPAddr{IP: net.ParseIP("10.9.9.9"), Port: 5005}
	transport := &fakeTransport{
		acks: []queuedAck{
			{payload: "ok:spoofed.jpg", sender: stranger},
			{payload: "not-an-ack", sender: senderFor(nodeA)},
			{payload: "ok:real.jpg", sender: senderFor(nodeA)},
		},
	}
	b := newTestBroadcaster(transport)

	round, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA}, 300*time.Millisecond, "")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}
	if got := round.Results[nodeA]; got.Status != domain.RoundStatusOK || got.Detail != "real.jpg" {
		t.Errorf("nodeA result = %+v", got)
	}
}

func TestBroadcaster_SendFailureSurfacesAsTimeout(t *testing.T) {
	transport := &fakeTransport{
		failHost: nodeB.Host,
		acks: []queuedAck{
			{payload: "ok:a.jpg", sender: senderFor(nodeA)},
		},
	}
	b := newTestBroadcaster(transport)

	round, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA, nodeB}, 300*time.Millisecond, "")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}
	if got := round.Results[nodeB]; got.Status != domain.RoundStatusTimeout {
		t.Errorf("nodeB result = %+v, want timeout", got)
	}
}

// mockStore counts persisted rounds and results.
type mockStore struct {
	mu      sync.Mutex
	rounds  []domain.FleetRound
	results map[uuid.UUID]int
}

func newMockStore() *mockStore {
	return &mockStore{results: make(map[uuid.UUID]int)}
}

func (s *mockStore) InsertRound(ctx context.Context, round domain.FleetRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, round)
	return nil
}

func (s *mockStore) InsertRoundResult(ctx context.Context, roundID uuid.UUID, node domain.NodeAddress, result domain.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[roundID]++
	return nil
}

// mockAnalytics counts recorded outcomes.
type mockAnalytics struct {
	mu      sync.Mutex
	records int
}

func (a *mockAnalytics) Record(ctx context.Context, node domain.NodeAddress, result domain.RoundResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records++
}

func TestBroadcaster_RecordsRoundToStoreAndAnalytics(t *testing.T) {
	transport := &fakeTransport{
		acks: []queuedAck{
			{payload: "ok:a.jpg", sender: senderFor(nodeA)},
		},
	}
	store := newMockStore()
	analytics := &mockAnalytics{}
	b := newTestBroadcaster(transport).WithStore(store).WithAnalytics(analytics)

	round, err := b.TriggerAll(testutil.TestContext(t), []domain.NodeAddress{nodeA, nodeB}, 300*time.Millisecond, "")
	if err != nil {
		t.Fatalf("TriggerAll: %v", err)
	}

	store.mu.Lock()
	roundCount := len(store.rounds)
	resultCount := store.results[round.ID]
	store.mu.Unlock()
	if roundCount != 1 {
		t.Errorf("stored rounds = %d, want 1", roundCount)
	}
	if resultCount != 2 {
		t.Errorf("stored results = %d, want 2", resultCount)
	}

	analytics.mu.Lock()
	records := analytics.records
	analytics.mu.Unlock()
	if records != 2 {
		t.Errorf("analytics records = %d, want 2", records)
	}
}
